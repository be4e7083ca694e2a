package probes

import (
	"context"
	"strings"

	"github.com/user/netreport/internal/model"
)

type fakeCall struct {
	Name string
	Args []string
	Path string
}

// fakeExecutor replays canned results keyed by binary name.
type fakeExecutor struct {
	results map[string]*model.CommandResult
	errs    map[string]error
	calls   []fakeCall
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		results: make(map[string]*model.CommandResult),
		errs:    make(map[string]error),
	}
}

func (f *fakeExecutor) set(name, stdout, stderr string) {
	f.results[name] = &model.CommandResult{Stdout: stdout, Stderr: stderr}
}

func (f *fakeExecutor) Run(ctx context.Context, name string, args ...string) (*model.CommandResult, error) {
	f.calls = append(f.calls, fakeCall{Name: name, Args: args})
	return f.reply(name, args)
}

func (f *fakeExecutor) RunToFile(ctx context.Context, path, name string, args ...string) (*model.CommandResult, error) {
	f.calls = append(f.calls, fakeCall{Name: name, Args: args, Path: path})
	return f.reply(name, args)
}

func (f *fakeExecutor) reply(name string, args []string) (*model.CommandResult, error) {
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	res, ok := f.results[name]
	if !ok {
		return nil, &CommandExecutionError{Command: commandLine(name, args), Reason: "command not found"}
	}
	out := *res
	out.Command = append([]string{name}, args...)
	return &out, nil
}

func (f *fakeExecutor) lastCall() fakeCall {
	if len(f.calls) == 0 {
		return fakeCall{}
	}
	return f.calls[len(f.calls)-1]
}

func joinArgs(c fakeCall) string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}
