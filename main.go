package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"voxtype/audio"
	"voxtype/chime"
	"voxtype/clipboard"
	"voxtype/config"
	"voxtype/doctor"
	"voxtype/encoder"
	"voxtype/history"
	"voxtype/hotkey"
	"voxtype/log"
	"voxtype/session"
	"voxtype/shutdown"
	"voxtype/transcriber"
)

var version = "dev"

type options struct {
	envFile      string
	logDir       string
	transcripts  string
	hotkey       string
	device       string
	fakeAudio    string
	silence      time.Duration
	typeDelay    time.Duration
	archiveAudio bool
	quiet        bool
	setup        bool
	doctor       bool
	tui          bool
	version      bool
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var o options
	fs.StringVar(&o.envFile, "env", ".env", "dotenv file with DEEPGRAM_API_KEY and VOXTYPE_* settings")
	fs.StringVar(&o.logDir, "logdir", "", "log directory (default: VOXTYPE_LOG_DIR or ./logs)")
	fs.StringVar(&o.transcripts, "transcripts", "", "transcript directory (default: VOXTYPE_TRANSCRIPT_DIR or ./transcripts)")
	fs.StringVar(&o.hotkey, "hotkey", "", `global toggle hotkey, e.g. "ctrl+alt+\" (default: VOXTYPE_HOTKEY)`)
	fs.StringVar(&o.device, "device", "", "use named microphone device")
	fs.StringVar(&o.fakeAudio, "fake-audio", "", "replay this 16-bit WAV file instead of the microphone")
	fs.DurationVar(&o.silence, "silence", 0, "auto-stop after this much silence (default: VOXTYPE_SILENCE_LIMIT or 20s)")
	fs.DurationVar(&o.typeDelay, "type-delay", -1, "delay between typed characters (default: VOXTYPE_TYPE_DELAY or 10ms)")
	fs.BoolVar(&o.archiveAudio, "archive-audio", false, "save a FLAC recording of each session next to its transcript")
	fs.BoolVar(&o.quiet, "quiet", false, "no start/stop chimes")
	fs.BoolVar(&o.setup, "setup", false, "select microphone device (otherwise uses system default)")
	fs.BoolVar(&o.doctor, "doctor", false, "run system diagnostics and exit")
	fs.BoolVar(&o.tui, "tui", true, "run with terminal UI (false reads commands from stdin)")
	fs.BoolVar(&o.version, "version", false, "print version and exit")
	err := fs.Parse(args)
	return o, err
}

// apply layers explicitly set flags over the loaded configuration.
func (o options) apply(cfg *config.Config) {
	if o.transcripts != "" {
		cfg.TranscriptDir = o.transcripts
	}
	if o.hotkey != "" {
		cfg.Hotkey = o.hotkey
	}
	if o.device != "" {
		cfg.Device = o.device
	}
	if o.silence > 0 {
		cfg.SilenceLimit = o.silence
	}
	if o.typeDelay >= 0 {
		cfg.TypeDelay = o.typeDelay
	}
	if o.archiveAudio {
		cfg.ArchiveAudio = true
	}
}

func fatalf(format string, args ...any) {
	log.Errorf(format, args...)
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	log.Close()
	os.Exit(1)
}

func run() {
	args := os.Args[1:]
	subcommand := ""
	if len(args) > 0 && args[0] == "history" {
		subcommand, args = "history", args[1:]
	}

	fs := flag.NewFlagSet("voxtype", flag.ExitOnError)
	var opts options
	var historyArgs []string
	if subcommand == "history" {
		// history takes its own flags; global ones come from the environment.
		historyArgs = args
		opts.envFile = ".env"
	} else {
		var err error
		if opts, err = parseFlags(fs, args); err != nil {
			os.Exit(2)
		}
	}

	if opts.version {
		fmt.Printf("voxtype %s\n", version)
		return
	}

	cfg, err := config.Load(opts.envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	opts.apply(&cfg)

	if subcommand == "history" {
		os.Exit(runHistory(historyArgs, cfg, os.Stdout))
	}

	logDir, err := log.ResolveDir(opts.logDir, cfg.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	cfg.LogDir = logDir
	log.SetDir(logDir)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()
	initCrashLog(logDir)
	if !opts.tui {
		log.SetConsole(os.Stderr)
	}
	log.Infof("voxtype %s starting", version)

	ctx, cancel := shutdown.Context(context.Background())
	defer cancel()

	var audioCtx audio.Context
	var device *audio.DeviceInfo
	if opts.fakeAudio != "" {
		audioCtx, err = audio.NewFakeContext(opts.fakeAudio, true)
		if err != nil {
			fatalf("loading fake audio: %v", err)
		}
		log.Infof("replaying %s instead of the microphone", opts.fakeAudio)
	} else {
		if audioCtx, err = audio.NewContext(); err != nil {
			fatalf("initializing audio: %v", err)
		}
		if device, err = chooseDevice(audioCtx, &cfg, opts.setup); err != nil {
			fatalf("%v", err)
		}
	}
	defer audioCtx.Close()

	captureConfig := audio.CaptureConfig{
		SampleRate: uint32(cfg.Deepgram.SampleRate),
		Channels:   uint32(cfg.Deepgram.Channels),
	}
	mic := audio.NewSource(audioCtx, device, captureConfig)
	log.Infof("recording device: %s", mic.DeviceName())

	combo, comboErr := hotkey.ParseCombo(cfg.Hotkey)
	dialer := transcriber.NewDeepgram(cfg.Deepgram)

	if opts.doctor {
		checks := &doctor.Checks{
			Config:    cfg,
			Mic:       mic,
			Dialer:    dialer,
			In:        os.Stdin,
			Out:       os.Stdout,
			Diagnose:  hotkey.Diagnose,
			Countdown: 5 * time.Second,
		}
		if comboErr == nil {
			if hk, err := hotkey.New(combo); err == nil {
				checks.Hotkey = hk
			}
		}
		if kb, err := clipboard.NewKeyboard(cfg.TypeDelay); err == nil {
			checks.Typer = kb
		} else {
			fmt.Printf("Warning: %v\n", err)
		}
		os.Exit(checks.Run(ctx))
	}

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			fatalf("%v (set it in the environment or in %s)", err, opts.envFile)
		}
		fatalf("invalid configuration: %v", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		fatalf("%v", err)
	}

	kb, err := clipboard.NewKeyboard(cfg.TypeDelay)
	if err != nil {
		fatalf("%v", err)
	}

	store, err := history.Open(historyPath(cfg))
	if err != nil {
		log.Warnf("session history disabled: %v", err)
	} else {
		defer store.Close()
	}

	commands := make(chan command, 8)
	var show func(session.State)
	var program *tea.Program
	tuiDone := make(chan struct{})

	hotkeyLabel := cfg.Hotkey
	if comboErr == nil {
		hotkeyLabel = combo.String()
	}

	if opts.tui {
		p := NewTUIProgram(newTUIModel(commands, hotkeyLabel))
		program = p
		show = func(s session.State) { p.Send(StateMsg{State: s}) }
		go func() {
			defer close(tuiDone)
			if _, err := p.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
			select {
			case commands <- cmdQuit:
			default:
			}
		}()
		p.Send(DeviceLineMsg{Text: "mic: " + mic.DeviceName()})
	} else {
		close(tuiDone)
		show = func(s session.State) { fmt.Println(describeState(s)) }
		go readCommands(os.Stdin, os.Stdout, commands)
		fmt.Printf("voxtype %s: type start, stop, toggle, pause, view or quit (hotkey %s)\n", version, hotkeyLabel)
	}
	notice := func(text string) {
		if program != nil {
			program.Send(NoticeMsg{Text: text})
		} else {
			fmt.Println(text)
		}
	}

	if opts.quiet {
		chime.Mute()
	}
	d := newDispatcher(withChimes(show))
	deps := session.Deps{
		Dialer:  dialer,
		OpenMic: session.MicFrom(mic),
		Typer:   kb,
		UI:      d,
	}
	if store != nil {
		deps.History = store
	}
	if cfg.ArchiveAudio {
		deps.Archive = func(path string) (session.Archiver, error) {
			return encoder.NewFileArchive(path, captureConfig.SampleRate)
		}
	}
	mgr, err := session.New(session.ConfigFrom(cfg), deps)
	if err != nil {
		fatalf("%v", err)
	}

	var hotkeyDown <-chan struct{}
	if comboErr != nil {
		log.Errorf("hotkey %q: %v", cfg.Hotkey, comboErr)
		notice(fmt.Sprintf("Hotkey disabled: %v", comboErr))
	} else if hk, err := hotkey.New(combo); err != nil {
		log.Errorf("hotkey %s: %v", combo, err)
		notice(fmt.Sprintf("Hotkey disabled: %v", err))
	} else if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		notice(fmt.Sprintf("Hotkey %s unavailable: %v", combo, err))
	} else {
		defer hk.Unregister()
		hotkeyDown = hk.Keydown()
		log.Infof("hotkey registered: %s", combo)
	}

	loop(ctx, mgr, d, commands, hotkeyDown)

	if program != nil {
		program.Quit()
	}
	<-tuiDone
	log.Info("voxtype exiting")
}

func chooseDevice(ctx audio.Context, cfg *config.Config, setup bool) (*audio.DeviceInfo, error) {
	if cfg.Device != "" {
		return audio.FindDevice(ctx, cfg.Device)
	}
	if !setup {
		return nil, nil
	}
	dev, err := audio.SelectDevice(ctx)
	if errors.Is(err, audio.ErrSelectionCancelled) {
		return nil, err
	}
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Printf("Warning: device selection failed: %v\nFalling back to default device\n", err)
		return nil, nil
	}
	cfg.Device = dev.Name
	return dev, nil
}

func initCrashLog(dir string) {
	f, err := os.OpenFile(filepath.Join(dir, "crash_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(f, debug.CrashOptions{})
}
