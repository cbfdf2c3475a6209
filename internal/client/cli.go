package client

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"
)

const usage = `Usage: trainctl <command> [options]

Commands:
  register [-email E] [-first-name F] [-last-name L]   create an account
  login [-email E]                                     log in and store the session
  logout                                               remove the stored session
  whoami                                               show the logged-in user
  list [-search TERM]                                  list schedules
  show <id>                                            show one schedule
  create -train N -from S -to S -departure T -arrival T -platform P [-inactive]
  update <id> [-train N] [-from S] [-to S] [-departure T] [-arrival T] [-platform P] [-active=BOOL]
  delete <id>                                          delete a schedule

Times accept RFC3339, YYYY-MM-DDTHH:MM[:SS] or YYYY-MM-DD.
`

// displayTimeLayout は一覧・詳細表示の日時形式。
const displayTimeLayout = "2006-01-02 15:04"

// CLI はtrainctlのサブコマンドを実行する。
type CLI struct {
	api      *APIClient
	sessions *SessionStore

	in  *bufio.Reader
	out io.Writer

	// readPassword はエコーなしでパスワードを読む。テストで差し替える。
	readPassword func() (string, error)
}

// NewCLI はCLIを生成する。inが端末の場合、パスワードはエコーなしで読み取る。
func NewCLI(api *APIClient, sessions *SessionStore, in io.Reader, out io.Writer) *CLI {
	c := &CLI{
		api:      api,
		sessions: sessions,
		in:       bufio.NewReader(in),
		out:      out,
	}
	c.readPassword = c.readPasswordLine
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.readPassword = func() (string, error) {
			pw, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(c.out)
			if err != nil {
				return "", err
			}
			return string(pw), nil
		}
	}
	return c
}

// Run はargs[0]のサブコマンドを実行する。
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.out, usage)
		return errors.New("no command given")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		return c.register(ctx, rest)
	case "login":
		return c.login(ctx, rest)
	case "logout":
		return c.logout()
	case "whoami":
		return c.whoami()
	case "list", "ls":
		return c.list(ctx, rest)
	case "show":
		return c.show(ctx, rest)
	case "create":
		return c.create(ctx, rest)
	case "update":
		return c.update(ctx, rest)
	case "delete", "rm":
		return c.delete(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprint(c.out, usage)
		return nil
	default:
		fmt.Fprint(c.out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *CLI) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.out)
	return fs
}

func (c *CLI) register(ctx context.Context, args []string) error {
	fs := c.newFlagSet("register")
	email := fs.String("email", "", "email address")
	firstName := fs.String("first-name", "", "first name")
	lastName := fs.String("last-name", "", "last name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *email, err = c.promptIfEmpty(*email, "Email"); err != nil {
		return err
	}
	if *firstName, err = c.promptIfEmpty(*firstName, "First name"); err != nil {
		return err
	}
	if *lastName, err = c.promptIfEmpty(*lastName, "Last name"); err != nil {
		return err
	}
	password, err := c.promptPassword("Password")
	if err != nil {
		return err
	}

	user, err := c.api.Register(ctx, RegisterRequest{
		Email:     *email,
		Password:  password,
		FirstName: *firstName,
		LastName:  *lastName,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Registered %s. Run 'trainctl login' to sign in.\n", user.Email)
	return nil
}

func (c *CLI) login(ctx context.Context, args []string) error {
	fs := c.newFlagSet("login")
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *email, err = c.promptIfEmpty(*email, "Email"); err != nil {
		return err
	}
	password, err := c.promptPassword("Password")
	if err != nil {
		return err
	}

	sess, err := c.api.Login(ctx, *email, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Logged in as %s %s (%s)\n", sess.User.FirstName, sess.User.LastName, sess.User.Email)
	return nil
}

func (c *CLI) logout() error {
	if err := c.api.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Logged out")
	return nil
}

func (c *CLI) whoami() error {
	sess, err := c.sessions.Load()
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNotLoggedIn
	}
	fmt.Fprintf(c.out, "%s %s <%s> (id: %s)\n", sess.User.FirstName, sess.User.LastName, sess.User.Email, sess.User.ID)
	return nil
}

func (c *CLI) list(ctx context.Context, args []string) error {
	fs := c.newFlagSet("list")
	search := fs.String("search", "", "substring matched against train number and stations")
	if err := fs.Parse(args); err != nil {
		return err
	}

	schedules, err := c.api.ListSchedules(ctx, *search)
	if err != nil {
		return err
	}
	if len(schedules) == 0 {
		fmt.Fprintln(c.out, "No schedules found")
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTRAIN\tFROM\tTO\tDEPARTURE\tARRIVAL\tPLATFORM\tSTATUS")
	for _, sc := range schedules {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			sc.ID, sc.TrainNumber, sc.DepartureStation, sc.ArrivalStation,
			formatTime(sc.DepartureTime), formatTime(sc.ArrivalTime),
			sc.Platform, statusLabel(sc.IsActive))
	}
	return tw.Flush()
}

func (c *CLI) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: trainctl show <id>")
	}

	sc, err := c.api.GetSchedule(ctx, args[0])
	if err != nil {
		return err
	}
	return c.printSchedule(sc)
}

func (c *CLI) create(ctx context.Context, args []string) error {
	fs := c.newFlagSet("create")
	f := bindScheduleFlags(fs)
	inactive := fs.Bool("inactive", false, "create the schedule as inactive")
	if err := fs.Parse(args); err != nil {
		return err
	}

	for _, req := range []struct {
		name  string
		value string
	}{
		{"train", *f.train},
		{"from", *f.from},
		{"to", *f.to},
		{"departure", *f.departure},
		{"arrival", *f.arrival},
		{"platform", *f.platform},
	} {
		if strings.TrimSpace(req.value) == "" {
			return fmt.Errorf("-%s is required", req.name)
		}
	}

	active := !*inactive
	in := ScheduleInput{
		TrainNumber:      f.train,
		DepartureStation: f.from,
		ArrivalStation:   f.to,
		DepartureTime:    f.departure,
		ArrivalTime:      f.arrival,
		Platform:         f.platform,
		IsActive:         &active,
	}

	sc, err := c.api.CreateSchedule(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created schedule %s\n", sc.ID)
	return nil
}

func (c *CLI) update(ctx context.Context, args []string) error {
	id, rest, err := splitID("update", args)
	if err != nil {
		return err
	}

	fs := c.newFlagSet("update")
	f := bindScheduleFlags(fs)
	active := fs.String("active", "", "true or false")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if id == "" {
		if fs.NArg() != 1 {
			return errors.New("usage: trainctl update <id> [options]")
		}
		id = fs.Arg(0)
	}

	// 明示的に指定されたフラグのみ送信する
	var in ScheduleInput
	changed := 0
	var parseErr error
	fs.Visit(func(fl *flag.Flag) {
		changed++
		switch fl.Name {
		case "train":
			in.TrainNumber = f.train
		case "from":
			in.DepartureStation = f.from
		case "to":
			in.ArrivalStation = f.to
		case "departure":
			in.DepartureTime = f.departure
		case "arrival":
			in.ArrivalTime = f.arrival
		case "platform":
			in.Platform = f.platform
		case "active":
			v, err := strconv.ParseBool(*active)
			if err != nil {
				parseErr = fmt.Errorf("-active must be true or false: %w", err)
				return
			}
			in.IsActive = &v
		}
	})
	if parseErr != nil {
		return parseErr
	}
	if changed == 0 {
		return errors.New("nothing to update; pass at least one option")
	}

	sc, err := c.api.UpdateSchedule(ctx, id, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Updated schedule %s\n", sc.ID)
	return c.printSchedule(sc)
}

func (c *CLI) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: trainctl delete <id>")
	}

	if err := c.api.DeleteSchedule(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Deleted schedule %s\n", args[0])
	return nil
}

type scheduleFlags struct {
	train, from, to, departure, arrival, platform *string
}

func bindScheduleFlags(fs *flag.FlagSet) scheduleFlags {
	return scheduleFlags{
		train:     fs.String("train", "", "train number"),
		from:      fs.String("from", "", "departure station"),
		to:        fs.String("to", "", "arrival station"),
		departure: fs.String("departure", "", "departure time"),
		arrival:   fs.String("arrival", "", "arrival time"),
		platform:  fs.String("platform", "", "platform"),
	}
}

// splitID は先頭引数がフラグでなければIDとして取り出す。
func splitID(cmd string, args []string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("usage: trainctl %s <id> [options]", cmd)
	}
	if strings.HasPrefix(args[0], "-") {
		return "", args, nil
	}
	return args[0], args[1:], nil
}

func (c *CLI) printSchedule(sc *Schedule) error {
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", sc.ID)
	fmt.Fprintf(tw, "Train\t%s\n", sc.TrainNumber)
	fmt.Fprintf(tw, "From\t%s\n", sc.DepartureStation)
	fmt.Fprintf(tw, "To\t%s\n", sc.ArrivalStation)
	fmt.Fprintf(tw, "Departure\t%s\n", formatTime(sc.DepartureTime))
	fmt.Fprintf(tw, "Arrival\t%s\n", formatTime(sc.ArrivalTime))
	fmt.Fprintf(tw, "Platform\t%s\n", sc.Platform)
	fmt.Fprintf(tw, "Status\t%s\n", statusLabel(sc.IsActive))
	return tw.Flush()
}

func (c *CLI) promptIfEmpty(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprintf(c.out, "%s: ", label)
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

func (c *CLI) promptPassword(label string) (string, error) {
	fmt.Fprintf(c.out, "%s: ", label)
	pw, err := c.readPassword()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return pw, nil
}

// readPasswordLine は端末でない入力からパスワードを1行読む。
func (c *CLI) readPasswordLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func formatTime(t time.Time) string {
	return t.Local().Format(displayTimeLayout)
}

func statusLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}
