package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/skosovsky/pollagent"
)

type echoArgs struct {
	Message string `json:"message" description:"Text to return"`
}

type addArgs struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

type sleepArgs struct {
	Millis int `json:"millis" description:"How long to sleep, at most 60000"`
}

func (s sleepArgs) Validate() error {
	if s.Millis < 0 || s.Millis > 60000 {
		return fmt.Errorf("millis must be within [0, 60000], got %d", s.Millis)
	}
	return nil
}

// demoTools returns the tools served by `pollagent listen`, sorted by name.
func demoTools() ([]*pollagent.Tool, error) {
	echo, err := pollagent.NewTool("echo", "Return the message unchanged", func(_ context.Context, a echoArgs) (echoArgs, error) {
		return a, nil
	}, pollagent.WithStrict())
	if err != nil {
		return nil, err
	}
	add, err := pollagent.NewTool("add", "Add two numbers", func(_ context.Context, a addArgs) (float64, error) {
		return a.A + a.B, nil
	}, pollagent.WithStrict())
	if err != nil {
		return nil, err
	}
	sleep, err := pollagent.NewTool("sleep", "Sleep, then report how long", func(ctx context.Context, a sleepArgs) (string, error) {
		t := time.NewTimer(time.Duration(a.Millis) * time.Millisecond)
		defer t.Stop()
		select {
		case <-t.C:
			return fmt.Sprintf("slept %dms", a.Millis), nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}, pollagent.WithTimeout(time.Minute), pollagent.WithTags("demo", "slow"))
	if err != nil {
		return nil, err
	}
	return []*pollagent.Tool{add, echo, sleep}, nil
}

// selectTools returns the demo tools named in only, or all of them.
func selectTools(only []string) ([]*pollagent.Tool, error) {
	tools, err := demoTools()
	if err != nil {
		return nil, err
	}
	if len(only) == 0 {
		return tools, nil
	}
	var out []*pollagent.Tool
	for _, name := range only {
		name = strings.TrimSpace(name)
		i := slices.IndexFunc(tools, func(t *pollagent.Tool) bool { return t.Name() == name })
		if i < 0 {
			return nil, fmt.Errorf("unknown demo tool %q", name)
		}
		out = append(out, tools[i])
	}
	return out, nil
}
