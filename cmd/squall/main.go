package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/qetlab/squall"
	"github.com/qetlab/squall/internal/ats"
	"github.com/qetlab/squall/internal/rundb"
)

var githash = "githash not computed"
var buildDate = "build date not computed"

// makeFileExist checks that dir/filename exists, and creates the directory
// and file if it doesn't.
func makeFileExist(dir, filename string) (string, error) {
	// Replace 1 instance of "$HOME" in the path with the actual home directory.
	if strings.Contains(dir, "$HOME") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = strings.Replace(dir, "$HOME", home, 1)
	}

	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		if err2 := os.MkdirAll(dir, 0775); err2 != nil {
			return "", err2
		}
	}

	fullname := path.Join(dir, filename)
	_, err := os.Stat(fullname)
	if os.IsNotExist(err) {
		f, err2 := os.OpenFile(fullname, os.O_WRONLY|os.O_CREATE, 0664)
		if err2 != nil {
			return "", err2
		}
		f.Close()
	}
	return fullname, nil
}

// setupViper sets up the viper configuration manager: says where to find
// config files and the filename and suffix. Sets some defaults.
func setupViper() error {
	viper.SetDefault("Verbose", false)
	viper.SetDefault("OutputDir", "")

	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Printf("Error finding User Home Dir: %s\n", err)
	}
	dotSquall := filepath.Join(home, ".squall")
	const filename string = "config"
	const suffix string = ".yaml"
	if _, err := makeFileExist(dotSquall, filename+suffix); err != nil {
		return err
	}

	viper.SetConfigName(filename)
	viper.AddConfigPath(filepath.FromSlash("/etc/squall"))
	viper.AddConfigPath(dotSquall)
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %s", err)
	}
	return nil
}

func startLogger(pfname string) *log.Logger {
	probFile, err := os.OpenFile(pfname, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("Could not open log file '%s'", pfname))
	}
	probLogger := log.New(probFile, "", log.LstdFlags)
	probLogger.SetOutput(&lumberjack.Logger{
		Filename:   pfname,
		MaxSize:    10,   // megabytes after which new file is created
		MaxBackups: 4,    // number of backups
		MaxAge:     180,  // days
		Compress:   true, // whether to gzip the backups
	})
	return probLogger
}

// openBoard selects the digitizer. The vendor SDK binding is built and
// linked separately; this tree ships the simulator only.
func openBoard(sim bool) (ats.Board, error) {
	if sim {
		return ats.NewSimBoard(), nil
	}
	return nil, fmt.Errorf("ATS SDK support is not built into this binary; run with -sim")
}

func main() {
	buildDate = strings.Replace(buildDate, ".", " ", -1) // workaround for Make problems
	squall.Build.Date = buildDate
	squall.Build.Githash = githash
	squall.Build.Summary = fmt.Sprintf("SQUALL version %s (git commit %s)", squall.Build.Version, githash)
	if host, err := os.Hostname(); err == nil {
		squall.Build.Host = host
	} else {
		squall.Build.Host = "host not detected"
	}

	printVersion := flag.Bool("version", false, "print version and quit")
	useSim := flag.Bool("sim", false, "use the simulated board instead of hardware")
	flag.Parse()

	if *printVersion {
		fmt.Printf("This is SQUALL version %s\n", squall.Build.Version)
		fmt.Printf("Git commit hash: %s\n", githash)
		fmt.Printf("Build time: %s\n", buildDate)
		fmt.Printf("Built on go version %s\n", runtime.Version())
		os.Exit(0)
	}

	fmt.Printf("\nThis is SQUALL version %s (git commit %s)\n", squall.Build.Version, githash)

	if err := setupViper(); err != nil {
		panic(err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	pfname, err := makeFileExist(filepath.Join(home, ".squall", "logs"), "problems.log")
	if err != nil {
		panic(err)
	}
	squall.ProblemLogger = startLogger(pfname)
	squall.ProblemLogger.Printf("SQUALL starting: %s", squall.Build.Summary)

	board, err := openBoard(*useSim)
	if err != nil {
		log.Fatal(err)
	}

	abort := make(chan struct{})
	updates := make(chan squall.StatusUpdate)
	go squall.RunStatusPublisher(updates, squall.Ports.Status, abort)

	ctrl := squall.NewAcquisitionControl(board, updates)
	ctrl.OutputDir = viper.GetString("OutputDir")
	ctrl.SetDB(rundb.Start(abort))

	// A keyboard interrupt requests a stop, so in-flight buffers drain
	// instead of being dropped.
	interruptCatcher := make(chan os.Signal, 1)
	signal.Notify(interruptCatcher, os.Interrupt)
	go func() {
		<-interruptCatcher
		var ok bool
		if err := ctrl.RequestStop(new(string), &ok); err == nil {
			info := true
			var report string
			if err := ctrl.WaitClosed(&info, &report); err == nil {
				fmt.Println(report)
			}
		}
		close(abort)
		os.Exit(0)
	}()

	squall.RunRPCServer(ctrl, squall.Ports.RPC)
}
