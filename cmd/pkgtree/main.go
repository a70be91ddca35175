package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/polydawn/refmt"
	"github.com/polydawn/refmt/json"
	"github.com/polydawn/refmt/obj/atlas"
	. "github.com/warpfork/go-errcat"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/config"
	"github.com/polydawn/pkgtree/fs"
	"github.com/polydawn/pkgtree/pkgcache"
	"github.com/polydawn/pkgtree/replicate"
)

/*
	Output serialization formats
*/
const (
	FmtJson = "json"
	FmtDumb = "dumb"
)

type baseCLI struct {
	Repo    string        // System repository path; defaults from config
	Format  string        // Output api format, eg. json
	Timeout time.Duration // Timeout for the whole command, eg. "60s"
	LogCLI  struct {
		From string // Oldest revision; empty walks to the root
		To   string // Newest revision
	}
	DiffCLI struct {
		Old      string
		New      string
		Packages bool // Compare recorded package lists instead of trees
	}
	LayersCLI struct {
		Rev string
	}
	PullCLI struct {
		Source  string // Source repository path
		Rev     string // Revision in the source
		Package string // NEVRA; pull into the package cache under its branch
	}
	BranchCLI struct {
		Nevra  string
		Branch string
	}
	VersionCLI struct {
		Prefix string
		Parent string // Revision the new commit will sit on; empty for a root commit
	}
}

func configureLog(cli *baseCLI, cmd *kingpin.CmdClause) {
	cmd.Arg("end", "Newest revision to show").
		Required().
		StringVar(&cli.LogCLI.To)
	cmd.Flag("from", "Oldest revision to show; must be an ancestor of end.  Defaults to the root commit").
		StringVar(&cli.LogCLI.From)
}

func configureDiff(cli *baseCLI, cmd *kingpin.CmdClause) {
	cmd.Arg("old", "Old revision").
		Required().
		StringVar(&cli.DiffCLI.Old)
	cmd.Arg("new", "New revision").
		Required().
		StringVar(&cli.DiffCLI.New)
	cmd.Flag("packages", "Compare package lists rather than files").
		BoolVar(&cli.DiffCLI.Packages)
}

func configurePull(cli *baseCLI, cmd *kingpin.CmdClause) {
	cmd.Arg("source", "Repository to pull from").
		Required().
		StringVar(&cli.PullCLI.Source)
	cmd.Arg("rev", "Revision in the source repository").
		Required().
		StringVar(&cli.PullCLI.Rev)
	cmd.Flag("package", "Import as this package (NEVRA) into the package cache").
		StringVar(&cli.PullCLI.Package)
}

/*
	Blocks until a sigint is received, then calls cancel.
	Returns early if ctx is done first.
*/
func CancelOnInterrupt(ctx context.Context, cancel context.CancelFunc) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	defer signal.Stop(signalChan)
	select {
	case <-signalChan:
		cancel()
	case <-ctx.Done():
	}
}

func main() {
	ctx := context.Background()
	exitCode := Main(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	os.Exit(int(exitCode))
}

func Main(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) pkgtree.ExitCode {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go CancelOnInterrupt(ctx, cancel)

	cli := baseCLI{}

	app := kingpin.New("pkgtree", "Package layering over content-addressed commits")
	app.HelpFlag.Short('h')

	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)

	app.Flag("repo", "System repository path (default from $PKGTREE_REPO)").
		StringVar(&cli.Repo)
	app.Flag("format", "Output api format").
		Default(FmtDumb).
		EnumVar(&cli.Format, FmtJson, FmtDumb)
	app.Flag("timeout", "Timeout for command").
		DurationVar(&cli.Timeout)

	appLog := app.Command("log", "list commits between two revisions, oldest first")
	configureLog(&cli, appLog)

	appDiff := app.Command("diff", "compare the trees (or package lists) of two revisions")
	configureDiff(&cli, appDiff)

	appLayers := app.Command("layers", "show the package layering of a revision")
	appLayers.Arg("rev", "Revision to inspect").
		Required().
		StringVar(&cli.LayersCLI.Rev)

	appPull := app.Command("pull-content", "copy one commit's content from another repository")
	configurePull(&cli, appPull)

	appPkgcache := app.Command("pkgcache", "inspect the package cache")
	appPkgcacheList := appPkgcache.Command("list", "list cached packages")

	appBranch := app.Command("branch", "convert between package identities and cache branch names")
	appBranchEncode := appBranch.Command("encode", "print the cache branch for a NEVRA")
	appBranchEncode.Arg("nevra", "Package NEVRA").
		Required().
		StringVar(&cli.BranchCLI.Nevra)
	appBranchDecode := appBranch.Command("decode", "print the NEVRA a cache branch names")
	appBranchDecode.Arg("branch", "Cache branch name").
		Required().
		StringVar(&cli.BranchCLI.Branch)

	appNextVersion := app.Command("next-version", "print the version a new commit on top of a revision should carry")
	appNextVersion.Arg("prefix", "Version prefix, eg. 34").
		Required().
		StringVar(&cli.VersionCLI.Prefix)
	appNextVersion.Arg("parent", "Revision the new commit builds on").
		StringVar(&cli.VersionCLI.Parent)

	var termErr error
	app.Terminate(func(status int) {
		termErr = fmt.Errorf("parsing error: %d", status)
	})
	cmd, err := app.Parse(args[1:])
	if err != nil {
		fmt.Fprintln(stderr, err)
		return pkgtree.ExitUsage
	}
	if termErr != nil {
		return pkgtree.ExitUsage
	}
	if cli.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cli.Timeout)
		defer cancel()
	}

	events := make(chan pkgtree.Event)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range events {
			emitEvent(cli.Format, ev, stdout, stderr)
		}
	}()
	mon := pkgtree.Monitor{Chan: events}

	var value interface{}
	var dumb string
	switch cmd {
	case appLog.FullCommand():
		value, dumb, err = executeLog(cli)
	case appDiff.FullCommand():
		value, dumb, err = executeDiff(cli)
	case appLayers.FullCommand():
		value, dumb, err = executeLayers(cli)
	case appPull.FullCommand():
		value, dumb, err = executePull(ctx, cli, mon)
	case appPkgcacheList.FullCommand():
		value, dumb, err = executePkgcacheList(cli)
	case appBranchEncode.FullCommand():
		value, dumb, err = executeBranchEncode(cli)
	case appBranchDecode.FullCommand():
		value, dumb, err = executeBranchDecode(cli)
	case appNextVersion.FullCommand():
		value, dumb, err = executeNextVersion(cli)
	default:
		err = Errorf(pkgtree.ErrUsage, "unknown command %q", cmd)
	}
	close(events)
	<-drained

	SerializeResult(cli.Format, value, dumb, err, stdout, stderr)
	return pkgtree.ExitCodeFor(err)
}

func (cli baseCLI) repoPath() string {
	if cli.Repo != "" {
		return config.Abs(cli.Repo).String()
	}
	return config.GetRepoPath().String()
}

// The cache beside --repo if that was given; otherwise wherever config puts it.
func (cli baseCLI) pkgcachePath() fs.AbsolutePath {
	if cli.Repo != "" {
		return pkgcache.Path(config.Abs(cli.Repo))
	}
	return config.GetPkgcachePath()
}

// Entries for the result types only this command emits.
var cliAtlas = atlas.MustBuild(append([]*atlas.AtlasEntry{
	atlas.BuildEntry(logEntry{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(replicate.PullStats{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(pkgcache.Entry{}).StructMap().Autogenerate().Complete(),
}, pkgtree.AtlasEntries...)...)

func SerializeResult(format string, value interface{}, dumb string, resultErr error, stdout io.Writer, stderr io.Writer) {
	switch format {
	case FmtJson:
		ev := pkgtree.Event{Result: &pkgtree.Event_Result{Error: pkgtree.ToError(resultErr)}}
		if resultErr == nil {
			ev.Result.Value = value
		}
		marshalLine(ev, stdout)
	case FmtDumb:
		if resultErr != nil {
			fmt.Fprintln(stderr, resultErr)
		} else {
			fmt.Fprint(stdout, dumb)
		}
	default:
		panic(fmt.Errorf("pkgtree: invalid format %s", format))
	}
}

func emitEvent(format string, ev pkgtree.Event, stdout, stderr io.Writer) {
	switch format {
	case FmtJson:
		marshalLine(ev, stdout)
	case FmtDumb:
		if ev.Log != nil && ev.Log.Level >= pkgtree.LogInfo {
			fmt.Fprintf(stderr, "[%s] %s\n", ev.Log.Level, ev.Log.Msg)
		}
	}
}

func marshalLine(ev pkgtree.Event, w io.Writer) {
	if err := refmt.NewMarshallerAtlased(json.EncodeOptions{}, w, cliAtlas).Marshal(&ev); err != nil {
		panic(err)
	}
	fmt.Fprintln(w)
}

// logEntry is the serial form of one commit in `log` output.
type logEntry struct {
	ID        api.CommitID `refmt:"id"`
	Parent    api.CommitID `refmt:"parent,omitempty"`
	Subject   string       `refmt:"subject"`
	Timestamp time.Time    `refmt:"timestamp"`
}
