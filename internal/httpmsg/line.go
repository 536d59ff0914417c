package httpmsg

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// MaxLineBytes bounds a single request, status or header line.
const MaxLineBytes = 64 << 10

var errLineTooLong = errors.New("line too long")

// readLine returns the next line with its CR/LF terminator removed. A final
// line that ends at EOF without a terminator is still returned; the EOF is
// reported on the following call.
func readLine(br *bufio.Reader) (string, error) {
	var line []byte
	for {
		frag, err := br.ReadSlice('\n')
		line = append(line, frag...)
		if len(line) > MaxLineBytes {
			return "", errLineTooLong
		}
		switch {
		case err == nil:
			return strings.TrimRight(string(line), "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(line) > 0:
			return strings.TrimRight(string(line), "\r\n"), nil
		default:
			return "", err
		}
	}
}
