package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/MuellerSeb/scarlett-mixer/internal/app"
	"github.com/MuellerSeb/scarlett-mixer/internal/config"
)

var (
	showHelp = flag.Bool("h", false, "Show help")
	version  = flag.Bool("version", false, "Show version")
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("scarlett-mixer v%s\n", appVersion)
		return
	}
	if *showHelp {
		showUsage()
		return
	}

	args := flag.Args()
	command := "run"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "run":
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		runConsole(dir)

	case "init":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "Error: init requires a directory path")
			fmt.Fprintln(os.Stderr, "Usage: scarlett-mixer init <directory>")
			os.Exit(1)
		}
		initConsole(args[0])

	default:
		// a bare directory argument means "run <dir>"
		if st, err := os.Stat(command); err == nil && st.IsDir() {
			runConsole(command)
			return
		}
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", command)
		fmt.Fprintln(os.Stderr)
		showUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// configPath picks an existing mixer.yaml, mixer.yml or mixer.json in dir,
// falling back to mixer.json.
func configPath(dir string) string {
	for _, name := range []string{"mixer.yaml", "mixer.yml", config.FileName} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, config.FileName)
}

func initConsole(dirArg string) {
	absDir, err := filepath.Abs(dirArg)
	if err != nil {
		fatalf("Invalid directory: %v", err)
	}
	cfgPath := configPath(absDir)
	_, created, err := config.Ensure(cfgPath)
	if err != nil {
		fatalf("Failed to create config: %v", err)
	}
	if created {
		fmt.Printf("Created %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}
}

func runConsole(dirArg string) {
	absDir, err := filepath.Abs(dirArg)
	if err != nil {
		fatalf("Invalid directory: %v", err)
	}
	if st, err := os.Stat(absDir); err != nil || !st.IsDir() {
		fatalf("Directory does not exist: %s", absDir)
	}

	cfgPath := configPath(absDir)
	cfg, created, err := config.Ensure(cfgPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	if created {
		fmt.Printf("Wrote default config to %s\n", cfgPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Starting mixer... (Press Ctrl+C to stop)")
	if err := app.Run(ctx, app.Options{
		Dir:     absDir,
		CfgPath: cfgPath,
		Cfg:     cfg,
	}); err != nil {
		fatalf("Mixer failed: %v", err)
	}
}

func showUsage() {
	fmt.Println("scarlett-mixer - mixer control plane")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  scarlett-mixer [run] [directory]   Run the mixer (default: current directory)")
	fmt.Println("  scarlett-mixer init <directory>    Write a default mixer.json")
	fmt.Println()
	fmt.Println("The directory holds mixer.json (or mixer.yaml) and the journal database.")
	fmt.Println("A missing config file is created with defaults on first run.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -h        Show this help message")
	fmt.Println("  -version  Show version information")
}
