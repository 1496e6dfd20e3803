package phi

import "io"

// RedactingWriter is an io.Writer that redacts every write before passing it
// on. Installed on the process logger at startup (log.SetOutput), it is the
// defense-in-depth backstop for anything that reaches the sink without going
// through the safe logger, including panic stack traces rendered by the
// runtime logger.
type RedactingWriter struct {
	w   io.Writer
	red *Redactor
}

// NewRedactingWriter wraps w with redaction.
func NewRedactingWriter(w io.Writer, red *Redactor) *RedactingWriter {
	return &RedactingWriter{w: w, red: red}
}

// Write redacts p and writes the result. It reports len(p) on success:
// redaction changes the byte count, and a short-write error from the
// standard logger would otherwise drop the line.
func (rw *RedactingWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(rw.w, rw.red.Redact(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
