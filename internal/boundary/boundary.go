// Package boundary implements the contract between mmv/mcp and its two
// external collaborators: the delimited source/destination record stream
// and the helper process that maps one to the other.
package boundary

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/ngrash/mmv/internal/escape"
	"github.com/ngrash/mmv/internal/mmverrors"
)

// Options configures record delimiting, wire encoding, and helper
// invocation style.
type Options struct {
	// NUL delimits records with a NUL byte instead of newline.
	NUL bool

	// Encode wraps helper traffic with the escape codec.
	Encode bool

	// Individual spawns the helper once per source instead of once for
	// the whole batch.
	Individual bool
}

func (o Options) delim() byte {
	if o.NUL {
		return 0
	}

	return '\n'
}

// ReadRecords reads delim-delimited records from r. A trailing delimiter
// at end-of-input does not produce a spurious empty final record, but an
// empty record anywhere else is an error: per spec.md §6, empty records
// are never valid.
func ReadRecords(r io.Reader, delim byte) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	scanner.Split(splitOn(delim))

	var records []string

	for scanner.Scan() {
		rec := scanner.Text()
		if rec == "" {
			return nil, mmverrors.ErrEmptyRecord
		}

		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func splitOn(delim byte) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}

		if i := bytes.IndexByte(data, delim); i >= 0 {
			return i + 1, data[:i], nil
		}

		if atEOF {
			return len(data), data, nil
		}

		return 0, nil, nil
	}
}

func writeRecords(w io.Writer, records []string, opts Options) error {
	bw := bufio.NewWriter(w)
	delim := opts.delim()

	for _, rec := range records {
		s := rec
		if opts.Encode {
			s = escape.Encode(s)
		}

		if _, err := bw.WriteString(s); err != nil {
			return err
		}

		if err := bw.WriteByte(delim); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func decodeAll(records []string, opts Options) ([]string, error) {
	if !opts.Encode {
		return records, nil
	}

	decoded := make([]string, len(records))

	for i, r := range records {
		d, err := escape.Decode(r)
		if err != nil {
			return nil, err
		}

		decoded[i] = d
	}

	return decoded, nil
}

// Runner drives the helper process.
type Runner struct {
	Cmd  string
	Args []string
	Opts Options
}

// Run maps srcs to destinations by driving the helper process, once for
// the whole batch or once per source depending on Opts.Individual.
func (r *Runner) Run(srcs []string) ([]string, error) {
	if r.Opts.Individual {
		return r.runIndividual(srcs)
	}

	return r.runBatch(srcs)
}

// runBatch writes every source to a single helper invocation's stdin,
// closes it to signal EOF, then reads the entire destination list from
// its stdout before waiting for exit — matching the original CLI's
// write-then-close-then-read ordering rather than a Cmd.Output()
// shortcut, which would not let stdin be closed independently of Wait.
func (r *Runner) runBatch(srcs []string) ([]string, error) {
	cmd := exec.Command(r.Cmd, r.Args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mmverrors.ErrHelperSpawn, err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mmverrors.ErrHelperSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", mmverrors.ErrHelperSpawn, err)
	}

	writeErr := writeRecords(stdin, srcs, r.Opts)
	closeErr := stdin.Close()

	dsts, readErr := ReadRecords(stdout, r.Opts.delim())

	waitErr := cmd.Wait()

	if waitErr != nil {
		return nil, fmt.Errorf("%w: %v", mmverrors.ErrHelperNonZero, waitErr)
	}

	if writeErr != nil {
		return nil, writeErr
	}

	if closeErr != nil {
		return nil, closeErr
	}

	if readErr != nil {
		return nil, readErr
	}

	if len(dsts) != len(srcs) {
		return nil, fmt.Errorf("%w: helper produced %d destinations for %d sources", mmverrors.ErrSourceDestCount, len(dsts), len(srcs))
	}

	return decodeAll(dsts, r.Opts)
}

// runIndividual spawns the helper once per source. Per the original
// implementation, a failing invocation aborts the whole run immediately
// rather than collecting partial results.
func (r *Runner) runIndividual(srcs []string) ([]string, error) {
	dsts := make([]string, 0, len(srcs))

	for _, src := range srcs {
		dst, err := r.runOne(src)
		if err != nil {
			return nil, err
		}

		dsts = append(dsts, dst)
	}

	return dsts, nil
}

func (r *Runner) runOne(src string) (string, error) {
	cmd := exec.Command(r.Cmd, r.Args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("%w: %v", mmverrors.ErrHelperSpawn, err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("%w: %v", mmverrors.ErrHelperSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: %v", mmverrors.ErrHelperSpawn, err)
	}

	writeErr := writeRecords(stdin, []string{src}, r.Opts)
	closeErr := stdin.Close()

	recs, readErr := ReadRecords(stdout, r.Opts.delim())

	waitErr := cmd.Wait()

	if waitErr != nil {
		return "", fmt.Errorf("%w: %v", mmverrors.ErrHelperNonZero, waitErr)
	}

	if writeErr != nil {
		return "", writeErr
	}

	if closeErr != nil {
		return "", closeErr
	}

	if readErr != nil {
		return "", readErr
	}

	if len(recs) != 1 {
		return "", fmt.Errorf("%w: expected exactly one destination, got %d", mmverrors.ErrSourceDestCount, len(recs))
	}

	decoded, err := decodeAll(recs, r.Opts)
	if err != nil {
		return "", err
	}

	return decoded[0], nil
}
