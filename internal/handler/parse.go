package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/romanzh1/rpsc-study-coach/internal/service/quiz"
)

const defaultDoneMinutes = 60

var errBadCallback = errors.New("malformed callback data")

type quizAction int

const (
	actionAnswer quizAction = iota
	actionSkip
	actionEnd
)

// quizCallback is a decoded diag:<sid>:<idx>:<choice|skip> or
// mock:<sid>:<idx>:<choice|skip|end> button press.
type quizCallback struct {
	Kind      quiz.Kind
	SessionID string
	Index     int
	Action    quizAction
	Choice    int
}

func quizData(kind quiz.Kind, sessionID string, index int, value string) string {
	prefix := "mock"
	if kind == quiz.KindDiagnostic {
		prefix = "diag"
	}
	return fmt.Sprintf("%s:%s:%d:%s", prefix, sessionID, index, value)
}

func parseQuizCallback(data string) (quizCallback, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 4 {
		return quizCallback{}, fmt.Errorf("parse quiz callback (data: %s): %w", data, errBadCallback)
	}

	var qc quizCallback
	switch parts[0] {
	case "diag":
		qc.Kind = quiz.KindDiagnostic
	case "mock":
		qc.Kind = quiz.KindMock
	default:
		return quizCallback{}, fmt.Errorf("parse quiz callback (data: %s): %w", data, errBadCallback)
	}

	qc.SessionID = parts[1]
	if qc.SessionID == "" {
		return quizCallback{}, fmt.Errorf("parse quiz callback (data: %s): %w", data, errBadCallback)
	}

	index, err := strconv.Atoi(parts[2])
	if err != nil || index < 0 {
		return quizCallback{}, fmt.Errorf("parse quiz callback (data: %s): %w", data, errBadCallback)
	}
	qc.Index = index

	switch parts[3] {
	case "skip":
		qc.Action = actionSkip
	case "end":
		if qc.Kind != quiz.KindMock {
			return quizCallback{}, fmt.Errorf("parse quiz callback (data: %s): %w", data, errBadCallback)
		}
		qc.Action = actionEnd
	default:
		choice, err := strconv.Atoi(parts[3])
		if err != nil || choice < 0 || choice > 3 {
			return quizCallback{}, fmt.Errorf("parse quiz callback (data: %s): %w", data, errBadCallback)
		}
		qc.Action = actionAnswer
		qc.Choice = choice
	}

	return qc, nil
}

// parseDoneArgs reads "/done [minutes] [score]". The score is c/t, a
// percentage, or a bare count out of ten.
func parseDoneArgs(args string) (minutes, correct, total int, err error) {
	fields := strings.Fields(args)
	minutes = defaultDoneMinutes

	if len(fields) >= 1 {
		minutes, err = strconv.Atoi(fields[0])
		if err != nil || minutes <= 0 {
			return 0, 0, 0, fmt.Errorf("invalid minutes %q", fields[0])
		}
	}

	if len(fields) >= 2 {
		correct, total, err = parseScore(fields[1])
		if err != nil {
			return 0, 0, 0, err
		}
	}

	return minutes, correct, total, nil
}

func parseScore(s string) (correct, total int, err error) {
	switch {
	case strings.Contains(s, "/"):
		c, t, _ := strings.Cut(s, "/")
		correct, err = strconv.Atoi(c)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid score %q", s)
		}
		total, err = strconv.Atoi(t)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid score %q", s)
		}
	case strings.HasSuffix(s, "%"):
		pct, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil || pct < 0 || pct > 100 {
			return 0, 0, fmt.Errorf("invalid score %q", s)
		}
		correct, total = int(pct/10), 10
	default:
		correct, err = strconv.Atoi(s)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid score %q", s)
		}
		total = 10
	}

	if correct < 0 || total < 0 || correct > total {
		return 0, 0, fmt.Errorf("invalid score %q", s)
	}
	return correct, total, nil
}

// parseInts splits "prefix:a:b:..." into exactly n integers.
func parseInts(data, prefix string, n int) ([]int, error) {
	rest, ok := strings.CutPrefix(data, prefix+":")
	if !ok {
		return nil, fmt.Errorf("parse callback (data: %s): %w", data, errBadCallback)
	}

	parts := strings.Split(rest, ":")
	if len(parts) != n {
		return nil, fmt.Errorf("parse callback (data: %s): %w", data, errBadCallback)
	}

	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("parse callback (data: %s): %w", data, errBadCallback)
		}
		out[i] = v
	}
	return out, nil
}
