package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/crystal-mush/gomuck/pkg/archive"
	"github.com/crystal-mush/gomuck/pkg/boltstore"
	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/validate"
	"github.com/crystal-mush/gomuck/pkg/worldfile"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	worldPath := flag.String("world", envDefault("MUCK_WORLD", ""), "Path to YAML world seed (env: MUCK_WORLD)")
	boltPath := flag.String("bolt", envDefault("MUCK_BOLT", ""), "Path to bbolt database (env: MUCK_BOLT)")
	force := flag.Bool("force", false, "Import even if the bbolt database already has objects")
	export := flag.String("export", "", "Write the loaded world back out as YAML (- for stdout)")
	showPlayers := flag.Bool("players", false, "List all player objects")
	showPrograms := flag.Bool("programs", false, "List programs and source sizes")
	showObj := flag.Int("obj", -1, "Show details for a specific object by dbref")
	runValidate := flag.Bool("validate", false, "Run integrity checks and compile every program")
	fix := flag.Bool("fix", false, "With -validate, apply fixable findings before importing")
	report := flag.String("report", "", "With -validate, write a JSON report to this path")
	restore := flag.String("restore", envDefault("MUCK_RESTORE", ""), "Restore -bolt from an archive before loading (env: MUCK_RESTORE)")
	archives := flag.String("archives", "", "List the archives in this directory and exit")
	flag.Parse()

	if *archives != "" {
		listArchives(*archives)
		return
	}

	if *worldPath == "" && *boltPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: dbloader -world <seed.yaml> [-bolt <game.bolt>] [options]")
		fmt.Fprintln(os.Stderr, "       dbloader -bolt <game.bolt> [options]")
		fmt.Fprintln(os.Stderr, "  -players       List all players")
		fmt.Fprintln(os.Stderr, "  -programs      List programs")
		fmt.Fprintln(os.Stderr, "  -obj <dbref>   Show object details")
		fmt.Fprintln(os.Stderr, "  -validate      Run integrity and compile checks")
		fmt.Fprintln(os.Stderr, "  -export <path> Dump the world as YAML")
		fmt.Fprintln(os.Stderr, "  -restore <tgz> Restore -bolt from an archive first")
		fmt.Fprintln(os.Stderr, "  -archives <dir> List archives")
		os.Exit(1)
	}

	if *restore != "" {
		if *boltPath == "" {
			fatal(fmt.Errorf("-restore needs -bolt"))
		}
		fmt.Printf("Restoring %s from %s\n", *boltPath, *restore)
		res, err := archive.RestoreArchive(archive.RestoreParams{ArchivePath: *restore, BoltDest: *boltPath})
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Restored %d files from a %s archive of %s taken %s\n\n",
			res.FilesRestored, res.Manifest.Server, res.Manifest.MudName, res.Manifest.Timestamp)
	}

	start := time.Now()
	var (
		db      *gamedb.Database
		sources validate.SourceFunc
		seed    *worldfile.Seed
		store   *boltstore.Store
	)

	if *worldPath != "" {
		fmt.Printf("Loading world seed: %s\n", *worldPath)
		f, err := worldfile.Load(*worldPath)
		if err == nil {
			seed, err = f.Build()
		}
		if err != nil {
			fatal(err)
		}
		db = seed.DB
		sources = func(ref gamedb.DBRef) (string, bool) {
			src, ok := seed.Sources[ref]
			return src, ok
		}
	}

	if *boltPath != "" {
		var err error
		store, err = boltstore.Open(*boltPath)
		if err != nil {
			fatal(err)
		}
		defer store.Close()
		if seed == nil {
			fmt.Printf("Loading bbolt database: %s\n", *boltPath)
			if err := store.LoadAll(); err != nil {
				fatal(err)
			}
			db = store.DB()
			sources = store.ProgramSource
		}
	}

	fmt.Printf("Loaded in %v\n\n", time.Since(start).Round(time.Microsecond))
	printSummary(db, sources)

	if *runValidate {
		fmt.Println()
		if !runValidation(db, sources, *fix, *report) && seed != nil && store != nil {
			fatal(fmt.Errorf("refusing to import a world with validation errors"))
		}
	}

	if seed != nil && store != nil {
		fmt.Println()
		if store.HasData() && !*force {
			fatal(fmt.Errorf("%s already has objects; use -force to replace them", *boltPath))
		}
		if err := seed.Import(store); err != nil {
			fatal(err)
		}
		size := "unknown size"
		if fi, err := os.Stat(*boltPath); err == nil {
			size = humanize.Bytes(uint64(fi.Size()))
		}
		fmt.Printf("Imported %s objects and %s programs into %s (%s)\n",
			humanize.Comma(int64(len(db.Objects))), humanize.Comma(int64(len(seed.Sources))), *boltPath, size)
	}

	if *showPlayers {
		fmt.Println()
		printPlayers(db)
	}

	if *showPrograms {
		fmt.Println()
		printPrograms(db, sources)
	}

	if *showObj >= 0 {
		fmt.Println()
		printObject(db, gamedb.DBRef(*showObj), sources)
	}

	if *export != "" {
		if err := exportWorld(db, sources, *export); err != nil {
			fatal(err)
		}
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}

func printSummary(db *gamedb.Database, sources validate.SourceFunc) {
	fmt.Println("=== DATABASE SUMMARY ===")
	fmt.Printf("Declared size:  %s objects\n", humanize.Comma(int64(db.Size)))
	fmt.Printf("Loaded objects: %s\n", humanize.Comma(int64(len(db.Objects))))

	typeCounts := make(map[gamedb.ObjectType]int)
	totalProps := 0
	sourceBytes := 0
	for _, obj := range db.Objects {
		typeCounts[obj.Type]++
		totalProps += len(obj.Props)
		if obj.Type == gamedb.TypeProgram && sources != nil {
			if src, ok := sources(obj.DBRef); ok {
				sourceBytes += len(src)
			}
		}
	}

	fmt.Println("\n--- Object Counts by Type ---")
	types := []gamedb.ObjectType{
		gamedb.TypeRoom, gamedb.TypeThing, gamedb.TypeExit,
		gamedb.TypePlayer, gamedb.TypeProgram, gamedb.TypeGarbage,
	}
	for _, t := range types {
		if c, ok := typeCounts[t]; ok {
			fmt.Printf("  %-10s %s\n", t.String(), humanize.Comma(int64(c)))
		}
	}
	fmt.Printf("\nTotal properties across all objects: %s\n", humanize.Comma(int64(totalProps)))
	fmt.Printf("Program source: %s\n", humanize.Bytes(uint64(sourceBytes)))
}

func printPlayers(db *gamedb.Database) {
	fmt.Println("=== PLAYERS ===")

	var players []*gamedb.Object
	for _, obj := range db.Objects {
		if obj.Type == gamedb.TypePlayer {
			players = append(players, obj)
		}
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].DBRef < players[j].DBRef
	})

	fmt.Printf("%-8s %-25s %-10s %10s %s\n", "DBRef", "Name", "Location", "Pennies", "Last Access")
	fmt.Println(strings.Repeat("-", 75))
	for _, p := range players {
		lastStr := "never"
		if !p.LastAccess.IsZero() {
			lastStr = humanize.Time(p.LastAccess)
		}
		fmt.Printf("%-8s %-25s %-10s %10s %s\n", p.DBRef, truncate(p.Name, 25), p.Location,
			humanize.Comma(int64(p.Pennies)), lastStr)
	}
	fmt.Printf("\nTotal players: %d\n", len(players))
}

func printPrograms(db *gamedb.Database, sources validate.SourceFunc) {
	fmt.Println("=== PROGRAMS ===")

	var progs []*gamedb.Object
	for _, obj := range db.Objects {
		if obj.Type == gamedb.TypeProgram {
			progs = append(progs, obj)
		}
	}
	sort.Slice(progs, func(i, j int) bool {
		return progs[i].DBRef < progs[j].DBRef
	})

	fmt.Printf("%-8s %-30s %-8s %10s %6s\n", "DBRef", "Name", "Owner", "Source", "Lines")
	fmt.Println(strings.Repeat("-", 68))
	for _, p := range progs {
		size, lines := "-", "-"
		if sources != nil {
			if src, ok := sources(p.DBRef); ok {
				size = humanize.Bytes(uint64(len(src)))
				lines = fmt.Sprint(strings.Count(src, "\n") + 1)
			}
		}
		fmt.Printf("%-8s %-30s %-8s %10s %6s\n", p.DBRef, truncate(p.Name, 30), p.Owner, size, lines)
	}
	fmt.Printf("\nTotal programs: %d\n", len(progs))
}

func printObject(db *gamedb.Database, ref gamedb.DBRef, sources validate.SourceFunc) {
	obj, ok := db.Objects[ref]
	if !ok {
		fmt.Printf("Object %s not found in database\n", ref)
		return
	}

	fmt.Printf("=== OBJECT %s ===\n", ref)
	fmt.Printf("Name:       %s\n", obj.Name)
	fmt.Printf("Type:       %s\n", obj.Type)
	fmt.Printf("Location:   %s\n", obj.Location)
	fmt.Printf("Contents:   %s\n", refList(db.Chain(obj.Contents)))
	fmt.Printf("Exits:      %s\n", refList(db.Chain(obj.Exits)))
	fmt.Printf("Links:      %s\n", refList(obj.Links))
	fmt.Printf("Next:       %s\n", obj.Next)
	fmt.Printf("Owner:      %s\n", obj.Owner)
	fmt.Printf("Pennies:    %s\n", humanize.Comma(int64(obj.Pennies)))
	fmt.Printf("Flags:      0x%08x\n", obj.Flags)
	if !obj.LastAccess.IsZero() {
		fmt.Printf("Last Access: %s\n", obj.LastAccess.Format(time.RFC3339))
	}
	if !obj.LastMod.IsZero() {
		fmt.Printf("Last Mod:    %s\n", obj.LastMod.Format(time.RFC3339))
	}

	names := gamedb.FlagNames(obj.Flags)
	if len(names) == 0 {
		fmt.Println("Flag names: (none)")
	} else {
		fmt.Printf("Flag names: %s\n", strings.ToUpper(strings.Join(names, " ")))
	}

	paths := make([]string, 0, len(obj.Props))
	for path := range obj.Props {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	fmt.Printf("\n--- Properties (%d) ---\n", len(paths))
	for _, path := range paths {
		v := obj.Props[path]
		fmt.Printf("  %s [%s] = %s\n", path, v.Kind, truncate(v.Text(), 120))
	}

	if obj.Type == gamedb.TypeProgram && sources != nil {
		if src, ok := sources(ref); ok {
			fmt.Printf("\n--- Source (%s) ---\n%s\n", humanize.Bytes(uint64(len(src))), src)
		}
	}
}

func runValidation(db *gamedb.Database, sources validate.SourceFunc, fix bool, reportPath string) bool {
	fmt.Println("=== VALIDATION ===")
	v := validate.New(db, validate.WithPrograms(sources))
	findings := v.Run()
	for _, f := range findings {
		fmt.Printf("%s: %s\n", strings.ToUpper(f.Severity.String()), f.Description)
	}

	if fix {
		fixed := 0
		for _, cat := range []validate.Category{validate.CatIntegrityWarn, validate.CatProps} {
			fixed += v.ApplyAll(cat)
		}
		fmt.Printf("\nApplied %d fixes\n", fixed)
	}

	if reportPath != "" {
		out, err := os.Create(reportPath)
		if err != nil {
			fatal(err)
		}
		err = validate.GenerateReport(v).WriteJSON(out)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Report written to %s\n", reportPath)
	}

	errors := v.Errors()
	fmt.Printf("\nValidation complete: %d findings, %d errors\n", len(findings), errors)
	return errors == 0
}

func exportWorld(db *gamedb.Database, sources validate.SourceFunc, path string) error {
	f := worldfile.FromDatabase(db, worldfile.SourceFunc(sources))
	if path == "-" {
		return worldfile.Write(os.Stdout, f)
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := worldfile.Write(out, f); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Printf("\nExported %s objects to %s\n", humanize.Comma(int64(len(f.Objects))), path)
	return nil
}

func listArchives(dir string) {
	list, err := archive.ListArchives(dir)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("%-32s %10s %-20s %8s %8s  %-16s %s\n", "Archive", "Size", "MUD", "Objects", "Programs", "Taken", "Contents")
	fmt.Println(strings.Repeat("-", 120))
	for _, a := range list {
		fmt.Printf("%-32s %10s %-20s %8s %8s  %-16s %s\n", a.Filename, humanize.Bytes(uint64(a.Size)),
			truncate(a.MudName, 20), humanize.Comma(int64(a.Objects)), humanize.Comma(int64(a.Programs)),
			humanize.Time(a.Taken), a.Contents())
		if a.Err != nil {
			fmt.Printf("    %v\n", a.Err)
		} else if len(a.Sources) > 0 {
			fmt.Printf("    src: %s\n", strings.Join(a.Sources, ", "))
		}
	}
	fmt.Printf("\nTotal archives: %d\n", len(list))
}

func refList(refs []gamedb.DBRef) string {
	if len(refs) == 0 {
		return "(none)"
	}
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.String()
	}
	return strings.Join(parts, " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
