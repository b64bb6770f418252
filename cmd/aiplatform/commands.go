package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"aiplatform/internal/models"
	"aiplatform/internal/services/ai"
	"aiplatform/internal/services/points"
)

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":     {"login -username NAME [-password PW]", runLogin},
	"register":  {"register -username NAME -email EMAIL [-password PW] [-name FULL] [-phone PHONE]", runRegister},
	"logout":    {"logout", runLogout},
	"me":        {"me", runMe},
	"points":    {"points [-costs]", runPoints},
	"functions": {"functions", runFunctions},
	"run":       {"run [-image FILE] FUNCTION [INPUT...]", runFunction},
	"batch":     {"batch FILE   (one \"function: input\" per line)", runBatch},
	"clip":      {"clip -description TEXT -type TYPE -style STYLE -length SECONDS VIDEO", runClip},
	"provider":  {"provider [openai|ollama]", runProvider},
	"dashboard": {"dashboard", runDashboard},
	"history":   {"history [-page N] [-size N] [-type CONSUME|RECHARGE|REFUND|BONUS]", runHistory},
	"watch":     {"watch   (print balance changes until interrupted)", runWatch},
	"status":    {"status  (API endpoint, session and backend health)", runStatus},
}

func usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(os.Stderr, "usage: aiplatform COMMAND [flags]")
	fmt.Fprintln(os.Stderr)
	for _, name := range names {
		fmt.Fprintln(os.Stderr, "  "+commands[name].usage)
	}
}

var errUsage = errors.New("invalid arguments")

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readSecret returns flagValue or the first line of stdin.
func readSecret(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(os.Stderr, "password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login")
	username := fs.String("username", "", "account name")
	password := fs.String("password", "", "password (read from stdin when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return errUsage
	}
	pw, err := readSecret(*password)
	if err != nil {
		return err
	}
	res, err := a.auth.Login(ctx, *username, pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "signed in as %s (%d points)\n", res.User.Username, res.User.Points)
	return nil
}

func runRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlags("register")
	var req models.RegisterRequest
	fs.StringVar(&req.Username, "username", "", "account name")
	fs.StringVar(&req.Email, "email", "", "email address")
	fs.StringVar(&req.FullName, "name", "", "full name")
	fs.StringVar(&req.PhoneNumber, "phone", "", "phone number")
	password := fs.String("password", "", "password (read from stdin when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pw, err := readSecret(*password)
	if err != nil {
		return err
	}
	req.Password = pw
	u, err := a.auth.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "registered %s, run `aiplatform login -username %s` to sign in\n", u.Username, u.Username)
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	a.auth.Logout(ctx)
	fmt.Fprintln(a.stdout, "signed out")
	return nil
}

func runMe(ctx context.Context, a *app, _ []string) error {
	u, err := a.auth.Me(ctx)
	if err != nil {
		return err
	}
	return printJSON(a.stdout, u)
}

func runPoints(ctx context.Context, a *app, args []string) error {
	fs := newFlags("points")
	showCosts := fs.Bool("costs", false, "also list function costs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	balance, err := a.points.Balance(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "balance: %d\n", balance)
	if a.points.IsLow(balance) {
		fmt.Fprintf(a.stdout, "balance is below %d points\n", a.cfg.Points.LowBalanceThreshold)
	}
	if !*showCosts {
		return nil
	}
	costs, err := a.points.Costs(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(costs))
	for name := range costs {
		names = append(names, name)
	}
	sort.Strings(names)
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%d\n", name, costs[name])
	}
	return tw.Flush()
}

func runFunctions(ctx context.Context, a *app, _ []string) error {
	catalog, err := a.ai.Functions(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCATEGORY\tPOINTS\tENABLED\tINPUT")
	for _, name := range names {
		fn := catalog[name]
		input := "text"
		if d, ok := ai.DescriptorFor(name); ok {
			input = d.InputLabel
			if d.Upload {
				input += " (file)"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n", name, fn.Category, fn.Points, fn.Enabled, input)
	}
	return tw.Flush()
}

func runFunction(ctx context.Context, a *app, args []string) error {
	fs := newFlags("run")
	image := fs.String("image", "", "image file for image-recognition")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errUsage
	}
	name := fs.Arg(0)

	tracker := points.NewTracker(a.points, points.WithTrackerLogger(a.logger))
	if _, err := tracker.Refresh(ctx); err != nil {
		return err
	}

	var (
		out string
		err error
	)
	if *image != "" {
		f, openErr := os.Open(*image)
		if openErr != nil {
			return openErr
		}
		defer f.Close()
		name = models.FunctionImageRecognition
		out, err = a.ai.RecognizeImage(ctx, filepath.Base(*image), f)
	} else {
		out, err = a.ai.Process(ctx, name, strings.Join(fs.Args()[1:], " "))
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, out)

	if catalog, err := a.ai.Functions(ctx); err == nil {
		remaining := tracker.Deduct(catalog[name].Points)
		fmt.Fprintf(os.Stderr, "points remaining: %d\n", remaining)
	}
	return nil
}

func runBatch(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	var jobs []ai.Job
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, input, ok := strings.Cut(line, ":")
		if !ok {
			return fmt.Errorf("%s: expected \"function: input\", got %q", args[0], line)
		}
		jobs = append(jobs, ai.Job{Function: strings.TrimSpace(name), Input: strings.TrimSpace(input)})
	}
	if err := sc.Err(); err != nil {
		return err
	}

	report := a.ai.ExecuteBatch(ctx, jobs)
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, r := range report.Results {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\tFAILED\t%s\n", r.Job.Function, r.Err.Message)
			continue
		}
		fmt.Fprintf(tw, "%s\tOK\t%s\n", r.Job.Function, r.Output)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%d succeeded, %d failed\n", report.Succeeded, report.Failed)
	if report.Failed > 0 {
		return fmt.Errorf("%d batch jobs failed", report.Failed)
	}
	return nil
}

func runClip(ctx context.Context, a *app, args []string) error {
	fs := newFlags("clip")
	var req ai.ClipRequest
	fs.StringVar(&req.Description, "description", "", "what the clip should show")
	fs.StringVar(&req.ClipType, "type", "highlight", "clip type")
	fs.StringVar(&req.Style, "style", "cinematic", "clip style")
	fs.IntVar(&req.TargetLength, "length", 60, "target length in seconds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	if req.Video, err = a.ai.ReadVideo(ctx, filepath.Base(fs.Arg(0)), f); err != nil {
		return err
	}
	plan, err := a.ai.MovieClip(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, plan)
	return nil
}

func runProvider(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		p, err := a.ai.Provider(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, p)
		return nil
	}
	msg, err := a.ai.SwitchProvider(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, msg)
	return nil
}

func runDashboard(ctx context.Context, a *app, _ []string) error {
	snap := a.dashboard.Load(ctx)
	if snap.User != nil {
		fmt.Fprintf(a.stdout, "user:    %s <%s>\n", snap.User.Username, snap.User.Email)
	}
	if snap.PointsOK {
		low := ""
		if snap.LowBalance {
			low = " (low)"
		}
		fmt.Fprintf(a.stdout, "points:  %d%s\n", snap.Points, low)
	}
	if len(snap.Costs) > 0 {
		fmt.Fprintf(a.stdout, "functions available: %d\n", len(snap.Costs))
	}
	if len(snap.Errors) > 0 {
		return fmt.Errorf("%d dashboard sections failed", len(snap.Errors))
	}
	return nil
}

func runHistory(ctx context.Context, a *app, args []string) error {
	fs := newFlags("history")
	page := fs.Int("page", 1, "page number")
	size := fs.Int("size", 20, "page size")
	typ := fs.String("type", "", "only show this transaction type")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := a.points.Transactions(ctx, *page, *size)
	if err != nil {
		return err
	}
	items := points.Filter{Type: models.TransactionType(strings.ToUpper(*typ))}.Apply(res.Items)

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tAMOUNT\tBALANCE\tDESCRIPTION")
	for _, t := range items {
		fmt.Fprintf(tw, "%s\t%s\t%+d\t%d\t%s\n", t.CreatedAt.Format("2006-01-02 15:04"), t.Type, t.Amount, t.BalanceAfter, t.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	sum := points.Summarize(items)
	fmt.Fprintf(a.stdout, "page %d of %d entries: consumed %d, recharged %d\n", res.Page, res.Total, sum.Consumed, sum.Recharged)
	return nil
}

func runWatch(ctx context.Context, a *app, _ []string) error {
	tracker := points.NewTracker(a.points,
		points.WithInterval(a.cfg.Points.RefreshInterval),
		points.WithTrackerLogger(a.logger),
		points.OnChange(func(balance int) {
			fmt.Fprintf(a.stdout, "balance: %d\n", balance)
		}),
	)
	if err := tracker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runStatus(ctx context.Context, a *app, _ []string) error {
	fmt.Fprintf(a.stdout, "api:      %s\n", a.client.BaseURL())
	fmt.Fprintf(a.stdout, "backend:  %s\n", a.cfg.Session.Backend)
	if u := a.session.User(); u != nil {
		fmt.Fprintf(a.stdout, "session:  %s\n", u.Username)
	} else {
		fmt.Fprintln(a.stdout, "session:  signed out")
	}

	names := make([]string, 0, len(a.checks))
	for name := range a.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	var failed int
	for _, name := range names {
		if err := a.checks[name](ctx); err != nil {
			failed++
			fmt.Fprintf(a.stdout, "%-9s %v\n", name+":", err)
			continue
		}
		fmt.Fprintf(a.stdout, "%-9s ok\n", name+":")
	}
	if failed > 0 {
		return fmt.Errorf("%d health checks failed", failed)
	}
	return nil
}
