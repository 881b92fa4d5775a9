package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/peterh/liner"

	"github.com/crystal-mush/gomuck/pkg/events"
	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/muf"
	"github.com/crystal-mush/gomuck/pkg/server"
	"github.com/crystal-mush/gomuck/pkg/world"
	"github.com/crystal-mush/gomuck/pkg/worldfile"
)

const (
	historyFile = ".mufrun_history"
	scratchName = "mufrun.muf"
)

// scratchWorld is used when neither a bbolt database nor a world seed is given.
const scratchWorld = `
objects:
  - {ref: 0, name: Room Zero, type: room, owner: 1}
  - {ref: 1, name: Wizard, type: player, location: 0, flags: [wizard], pennies: 1000}
`

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	os.Exit(run())
}

func run() int {
	confFile := flag.String("conf", envDefault("MUCK_CONF", ""), "Path to game config file (env: MUCK_CONF)")
	boltPath := flag.String("bolt", envDefault("MUCK_BOLT", ""), "Path to bbolt database, overrides config (env: MUCK_BOLT)")
	worldPath := flag.String("world", envDefault("MUCK_WORLD", ""), "Path to YAML world seed, overrides config (env: MUCK_WORLD)")
	player := flag.Int("player", 1, "DBRef number of the player running programs")
	program := flag.Int("program", -1, "Run the stored program with this dbref")
	file := flag.String("file", "", "Load MUF source from file (into -program, or a scratch program)")
	expr := flag.String("e", "", "MUF words to run as the body of a scratch main word")
	command := flag.String("command", "", "Command string the program sees as 'command'")
	watch := flag.Bool("watch", false, "With -file, recompile and rerun whenever the file changes")
	metricsAddr := flag.String("metrics", envDefault("MUCK_METRICS", ""), "Serve Prometheus metrics on this address (env: MUCK_METRICS)")
	flag.Parse()

	log.SetPrefix("mufrun ")
	fmt.Fprintf(os.Stderr, "%s MUF runner\n", server.VersionString())

	conf := server.DefaultGameConf()
	if *confFile != "" {
		var err error
		if conf, err = server.LoadGameConf(*confFile); err != nil {
			log.Printf("config: %v", err)
			return 1
		}
	} else {
		conf.JournalEnabled = false
	}
	if *boltPath != "" {
		conf.BoltPath = *boltPath
	}
	if *worldPath != "" {
		conf.WorldPath = *worldPath
	}
	if *metricsAddr != "" {
		conf.MetricsAddr = *metricsAddr
	}

	g, err := openGame(conf)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer g.Close()

	actor := gamedb.DBRef(*player)
	if obj, ok := g.World.Get(actor); !ok || obj.Type != gamedb.TypePlayer {
		log.Printf("%s is not a player", actor)
		return 1
	}
	g.World.Bus().Subscribe(actor, &stdoutSubscriber{w: os.Stdout})

	if conf.MetricsAddr != "" {
		go serveMetrics(g, conf.MetricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *expr != "":
		ref, err := scratchProgram(g, actor)
		if err == nil {
			err = g.SetProgramSource(ref, ": main "+*expr+" ;")
		}
		if err != nil {
			log.Printf("%v", err)
			return 1
		}
		return runOnce(ctx, g, actor, ref, *command)

	case *file != "":
		ref := gamedb.DBRef(*program)
		if ref < 0 {
			if ref, err = scratchProgram(g, actor); err != nil {
				log.Printf("%v", err)
				return 1
			}
		}
		data, err := os.ReadFile(*file)
		if err == nil {
			err = g.SetProgramSource(ref, string(data))
		}
		if err != nil {
			log.Printf("%v", err)
			return 1
		}
		code := runOnce(ctx, g, actor, ref, *command)
		if !*watch {
			return code
		}
		if err := watchAndRerun(ctx, g, actor, ref, *file, *command); err != nil {
			log.Printf("%v", err)
			return 1
		}
		return 0

	case *program >= 0:
		return runOnce(ctx, g, actor, gamedb.DBRef(*program), *command)

	default:
		return repl(ctx, g, actor)
	}
}

func openGame(conf *server.GameConf) (*server.Game, error) {
	if conf.BoltPath != "" || conf.WorldPath != "" {
		return server.OpenGame(conf)
	}
	f, err := worldfile.Parse(strings.NewReader(scratchWorld))
	if err != nil {
		return nil, err
	}
	seed, err := f.Build()
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(os.Stderr, "Using scratch world (no bolt database or world seed given)")
	return server.NewGame(world.New(seed.DB, nil, nil), conf), nil
}

// scratchProgram finds the runner's program object for actor, creating it
// in actor's inventory on first use.
func scratchProgram(g *server.Game, actor gamedb.DBRef) (gamedb.DBRef, error) {
	found, next := gamedb.Nothing, gamedb.DBRef(0)
	g.World.View(func(db *gamedb.Database) {
		next = gamedb.DBRef(db.Size)
		for _, ref := range db.Chain(db.Objects[actor].Contents) {
			if obj := db.Objects[ref]; obj.Type == gamedb.TypeProgram && obj.Name == scratchName {
				found = ref
				return
			}
		}
	})
	if found != gamedb.Nothing {
		return found, nil
	}
	obj := gamedb.NewObject(next, scratchName, gamedb.TypeProgram, actor)
	obj.Location = actor
	if err := g.World.Add(obj); err != nil {
		return gamedb.Nothing, err
	}
	return next, nil
}

func runOnce(ctx context.Context, g *server.Game, actor, ref gamedb.DBRef, command string) int {
	start := time.Now()
	inv, r := g.RunProgram(ctx, actor, ref, ref, command)
	printStack(inv)
	fmt.Fprintf(os.Stderr, "[%s, %s steps, %v]\n", r.Kind, humanize.Comma(int64(r.Steps)), time.Since(start).Round(time.Microsecond))
	if !r.Successful() {
		return 1
	}
	return 0
}

func watchAndRerun(ctx context.Context, g *server.Game, actor, ref gamedb.DBRef, path, command string) error {
	reloaded := make(chan muf.Result, 1)
	sw, err := g.WatchSources(map[string]gamedb.DBRef{path: ref}, func(_ gamedb.DBRef, _ string, r muf.Result, err error) {
		if err == nil {
			select {
			case reloaded <- r:
			default:
			}
		}
	})
	if err != nil {
		return err
	}
	defer sw.Close()

	fmt.Fprintf(os.Stderr, "Watching %s; Ctrl-C to stop\n", filepath.Base(path))
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-reloaded:
			if r.Successful() {
				runOnce(ctx, g, actor, ref, command)
			}
		}
	}
}

func serveMetrics(g *server.Game, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", g.Metrics.Handler())
	log.Printf("metrics on http://%s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("metrics server: %v", err)
	}
}

func printStack(inv *muf.Invocation) {
	if inv == nil || inv.Stack.Len() == 0 {
		return
	}
	items := inv.Stack.Items()
	parts := make([]string, len(items))
	for i, d := range items {
		parts[i] = d.String()
	}
	fmt.Printf("stack: %s\n", strings.Join(parts, " "))
}

// -----------------------------------------------------------------------------
// repl
// -----------------------------------------------------------------------------

// repl reads MUF interactively. A line starting with ':' defines words that
// later lines can use; any other line becomes the body of a main word and
// runs at once. Lines starting with '.' are runner commands.
func repl(ctx context.Context, g *server.Game, actor gamedb.DBRef) int {
	fmt.Println("Type MUF words to run them, ': name ... ;' to define a word, .help for commands.")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(wordCompleter(g))

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	ref, err := scratchProgram(g, actor)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	// The REPL counts as a connection so AWAKE? and DESCRIPTORS see it.
	sess := g.World.Sessions.Connect(actor)
	defer g.World.Sessions.Disconnect(sess.ID)

	var defs []string
	for ctx.Err() == nil {
		src, ok := readDefinition(ln)
		if !ok {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(src)
		if line == "" {
			continue
		}
		g.World.Sessions.Touch(sess.ID)
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))

		if strings.HasPrefix(line, ".") {
			if exit := replCommand(ctx, g, actor, line, &defs); exit {
				break
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			// check the definition compiles before keeping it
			candidate := append(append([]string(nil), defs...), line)
			if err := g.SetProgramSource(ref, strings.Join(candidate, "\n")+"\n: main ;"); err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			if _, r := g.Program(ref); !r.Successful() {
				fmt.Fprintln(os.Stderr, r.Err())
				continue
			}
			defs = candidate
			fmt.Println("ok")
			continue
		}

		source := strings.Join(append(append([]string(nil), defs...), ": main "+line+" ;"), "\n")
		if err := g.SetProgramSource(ref, source); err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		runOnce(ctx, g, actor, ref, "")
	}
	return 0
}

// readDefinition reads one line, continuing while a ':' definition has not
// reached its ';'.
func readDefinition(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := "muf> "
		if b.Len() > 0 {
			prompt = "...> "
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return "", false
		}
		if err != nil {
			return "", true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := strings.TrimSpace(b.String())
		if !strings.HasPrefix(src, ":") || strings.HasSuffix(src, ";") {
			return b.String(), true
		}
	}
}

func replCommand(ctx context.Context, g *server.Game, actor gamedb.DBRef, line string, defs *[]string) (exit bool) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case ".quit", ".exit":
		return true
	case ".help":
		fmt.Println(".run #n [command]  run a stored program")
		fmt.Println(".do <command>      run a command as the player (matches actions)")
		fmt.Println(".words             list defined words")
		fmt.Println(".forget            drop all defined words")
		fmt.Println(".prims [prefix]    list primitives")
		fmt.Println(".stats             show host statistics")
		fmt.Println(".archive [dir]     write a backup archive")
		fmt.Println(".quit              leave")
	case ".run":
		target, rest, _ := strings.Cut(arg, " ")
		n, err := strconv.Atoi(strings.TrimPrefix(target, "#"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad dbref %q\n", target)
			return false
		}
		runOnce(ctx, g, actor, gamedb.DBRef(n), strings.TrimSpace(rest))
	case ".do":
		if _, err := g.Execute(ctx, actor, arg); err != nil && !errors.Is(err, server.ErrHuh) {
			fmt.Fprintln(os.Stderr, err)
		}
	case ".words":
		for _, d := range *defs {
			fmt.Println(d)
		}
	case ".forget":
		*defs = nil
	case ".prims":
		names := g.Engine.Registry().Names()
		var out []string
		for _, n := range names {
			if strings.HasPrefix(n, strings.ToUpper(arg)) {
				out = append(out, n)
			}
		}
		fmt.Println(strings.Join(out, " "))
	case ".stats":
		printStats(g)
	case ".archive":
		if path, err := g.Archive(strings.TrimSpace(arg)); err != nil {
			fmt.Fprintln(os.Stderr, err)
		} else {
			fmt.Printf("archive written to %s\n", path)
		}
	default:
		fmt.Println("unknown command. Type .help for a list.")
	}
	return false
}

func printStats(g *server.Game) {
	st := g.Stats()
	fmt.Printf("Objects:     %s\n", humanize.Comma(int64(st.Objects)))
	fmt.Printf("Programs:    %s (%s compiled)\n", humanize.Comma(int64(st.Programs)), humanize.Comma(int64(st.Cached)))
	fmt.Printf("Sessions:    %d\n", st.Sessions)
	fmt.Printf("Active runs: %d\n", st.ActiveRuns)
	if g.Journal != nil {
		fails, err := g.Journal.Failures(5)
		if err == nil && len(fails) > 0 {
			fmt.Println("Recent failures:")
			for _, f := range fails {
				fmt.Printf("  %s %s %s: %s (%s)\n", humanize.Time(f.Started), f.Program, f.Kind, f.Reason, f.ID)
			}
		}
	}
}

// wordCompleter completes the last word on the line against primitive names.
func wordCompleter(g *server.Game) liner.Completer {
	names := g.Engine.Registry().Names()
	return func(line string) []string {
		i := strings.LastIndexAny(line, " \t") + 1
		prefix := strings.ToUpper(line[i:])
		if prefix == "" {
			return nil
		}
		var out []string
		for _, n := range names {
			if strings.HasPrefix(n, prefix) {
				out = append(out, line[:i]+strings.ToLower(n))
			}
		}
		return out
	}
}

// stdoutSubscriber prints the player's events.
type stdoutSubscriber struct {
	w io.Writer
}

func (s *stdoutSubscriber) Receive(ev events.Event) {
	switch ev.Type {
	case events.EvEcho:
		fmt.Fprintf(s.w, "[echo] %s\n", ev.Text)
	case events.EvForce:
		fmt.Fprintf(s.w, "[force %s] %s\n", ev.Source, ev.Text)
	case events.EvConnect, events.EvDisconnect:
	default:
		fmt.Fprintln(s.w, ev.Text)
	}
}

func (s *stdoutSubscriber) Closed() bool { return false }
