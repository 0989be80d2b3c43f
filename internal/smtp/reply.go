package smtp

import (
	"bufio"
	"errors"
	"net/textproto"
	"strconv"
)

const (
	maxReplyLines = 128
	// maxReplyBytes caps one reply, continuation lines and skipped blank
	// lines included.
	maxReplyBytes = 64 << 10
)

var (
	ErrReplyTooLong  = errors.New("smtp reply exceeds line limit")
	ErrReplyTooLarge = errors.New("smtp reply exceeds size limit")
)

// ReadReply reads lines until the final line of a reply. Continuation lines
// carry '-' in the fourth column; the final line carries a space (or ends
// after the code). Blank lines are skipped.
func ReadReply(r *textproto.Reader) (Reply, error) {
	var rep Reply
	budget := maxReplyBytes
	for {
		line, err := readLine(r.R, &budget)
		if err != nil {
			return Reply{}, err
		}
		if line == "" {
			continue
		}
		if len(rep.Lines) >= maxReplyLines {
			return Reply{}, ErrReplyTooLong
		}

		code, more, text := parseLine(line)
		rep.Lines = append(rep.Lines, text)
		if !more {
			rep.Code = code
			return rep, nil
		}
	}
}

// readLine reads one line without its line ending, charging its length plus
// the terminator against budget.
func readLine(br *bufio.Reader, budget *int) (string, error) {
	var line []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			return "", err
		}
		*budget -= len(chunk)
		if *budget < 0 {
			return "", ErrReplyTooLarge
		}
		line = append(line, chunk...)
		if !isPrefix {
			break
		}
	}
	*budget -= 2
	if *budget < 0 {
		return "", ErrReplyTooLarge
	}
	return string(line), nil
}

func parseLine(line string) (code int, more bool, text string) {
	if len(line) >= 3 {
		if n, err := strconv.Atoi(line[:3]); err == nil && n >= 0 {
			code = n
		}
	}
	if len(line) < 4 {
		return code, false, ""
	}
	return code, line[3] == '-', line[4:]
}
