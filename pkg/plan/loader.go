package plan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/notify"
)

const (
	inboxDir           = "inbox"
	archivedDir        = "archived"
	failedDir          = "failed"
	failureCountSuffix = ".failed"
	leaderLogSuffix    = ".blocks.json"
	loaderMailSource   = "plan-loader"
)

// LoadReport summarizes a pass over the inbox.
type LoadReport struct {
	// Archived is the number of leader logs, which have been stored.
	Archived int `json:"archived"`
	// Retried is the number of leader logs, which failed and stay in the
	// inbox.
	Retried int `json:"retried"`
	// Rejected is the number of leader logs, which have been moved to the
	// failed directory.
	Rejected int `json:"rejected"`
}

// Loader submits the leader log files placed in an inbox directory. The
// inbox has a directory per epoch, which contains a file per pool named
// "TICKER.blocks.json". Loaded files are moved to the archive. Malformed
// files and files which failed too often are moved to the failed directory.
type Loader struct {
	planner *Planner
	mailer  notify.Mailer
	root    string
	// MaxFailures is the number of failed attempts after which a file is
	// rejected.
	MaxFailures int
	now         func() time.Time

	lock sync.Mutex
	cron *cron.Cron
}

// NewLoader creates a loader for the inbox below the given root directory.
func NewLoader(planner *Planner, mailer notify.Mailer, root string) *Loader {
	return &Loader{
		planner:     planner,
		mailer:      mailer,
		root:        root,
		MaxFailures: 3,
		now:         time.Now,
	}
}

// InboxPath returns the path of the inbox directory.
func (l *Loader) InboxPath() string {
	return filepath.Join(l.root, inboxDir)
}

// ProcessInbox submits every leader log in the inbox. Empty epoch
// directories are removed afterwards.
//
// An error will be returned, if the inbox couldn't be read or the context
// has been cancelled. Failures of single files are only counted.
func (l *Loader) ProcessInbox(ctx context.Context) (*LoadReport, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	inbox := l.InboxPath()
	err := os.MkdirAll(inbox, 0o755)
	if err != nil {
		return nil, fmt.Errorf("couldn't create the inbox '%s': %w", inbox, err)
	}
	epochDirs, err := os.ReadDir(inbox)
	if err != nil {
		return nil, fmt.Errorf("couldn't read the inbox '%s': %w", inbox, err)
	}
	report := &LoadReport{}
	for _, dir := range epochDirs {
		if !dir.IsDir() {
			continue
		}
		err = l.processEpochDir(ctx, dir.Name(), report)
		if err != nil {
			return report, err
		}
	}
	if report.Archived+report.Retried+report.Rejected > 0 {
		log.Infof("processed the inbox: %d archived, %d retried, %d rejected", report.Archived,
			report.Retried, report.Rejected)
	}
	return report, nil
}

func (l *Loader) processEpochDir(ctx context.Context, epochDir string, report *LoadReport) error {
	dir := filepath.Join(l.InboxPath(), epochDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Errorf("couldn't read the inbox directory '%s': %s", dir, err.Error())
		return nil
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.processFile(ctx, epochDir, entry.Name(), report)
	}
	entries, err = os.ReadDir(dir)
	if err == nil && len(entries) == 0 {
		err = os.Remove(dir)
		if err != nil {
			log.Warnf("couldn't remove the empty inbox directory '%s': %s", dir, err.Error())
		}
	}
	return nil
}

func (l *Loader) processFile(ctx context.Context, epochDir, name string, report *LoadReport) {
	path := filepath.Join(l.InboxPath(), epochDir, name)
	err := l.load(ctx, path, name)
	if err == nil {
		target := filepath.Join(l.root, archivedDir, epochDir, archiveName(l.now(), name))
		err = moveFile(path, target)
		if err != nil {
			log.Errorf("couldn't archive '%s': %s", path, err.Error())
			return
		}
		removeFailureCount(path)
		report.Archived++
		log.Infof("loaded and archived '%s'", path)
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	if isMalformed(err) {
		l.reject(epochDir, name, fmt.Sprintf("loading '%s' failed due to malformed content", path), err, report)
		return
	}
	failures := countFailure(path)
	if failures < l.MaxFailures {
		report.Retried++
		log.Warnf("loading '%s' failed for the %d. time, it is retried: %s", path, failures, err.Error())
		return
	}
	l.reject(epochDir, name, fmt.Sprintf("loading '%s' failed %d times", path, failures), err, report)
}

// isMalformed returns true, if the given error was caused by the content of
// a leader log, such that loading it again can't succeed.
func isMalformed(err error) bool {
	return errors.Is(err, ParsingError) || errors.Is(err, InvalidError)
}

// reject moves the given inbox file to the failed directory and mails the
// operators about it.
func (l *Loader) reject(epochDir, name, message string, err error, report *LoadReport) {
	path := filepath.Join(l.InboxPath(), epochDir, name)
	target := filepath.Join(l.root, failedDir, epochDir, name)
	moveErr := moveFile(path, target)
	if moveErr != nil {
		log.Errorf("couldn't move '%s' to the failed directory: %s", path, moveErr.Error())
		return
	}
	removeFailureCount(path)
	report.Rejected++
	log.Errorf("%s, it has been moved to '%s': %s", message, target, err.Error())
	details := strings.Join([]string{
		"FileName: " + name,
		"Pool ticker: " + tickerOf(name),
		"Epoch: " + epochDir,
		"Reason: " + err.Error(),
	}, ", ")
	l.mailer.SendMail(fmt.Sprintf("FAILED json processing: %s/%s", epochDir, name),
		"<span>"+details+"</span>", loaderMailSource, details)
}

func (l *Loader) load(ctx context.Context, path, name string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	leaderLog, err := ParseLeaderLog(file)
	if err != nil {
		return err
	}
	_, err = l.planner.Submit(ctx, leaderLog, tickerOf(name))
	return err
}

// Start schedules passes over the inbox with the given cron expression,
// which has a leading seconds field.
func (l *Loader) Start(schedule string) error {
	logger := cron.PrintfLogger(log.StandardLogger())
	l.cron = cron.New(cron.WithSeconds(), cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	_, err := l.cron.AddFunc(schedule, func() {
		_, err := l.ProcessInbox(context.Background())
		if err != nil {
			log.Errorf("processing the inbox failed: %s", err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("invalid loader schedule '%s': %w", schedule, err)
	}
	log.Infof("scheduling the plan loader at '%s' for '%s'", schedule, l.InboxPath())
	l.cron.Start()
	return nil
}

// Stop stops scheduling passes and waits for the running one to finish.
func (l *Loader) Stop() {
	if l.cron != nil {
		<-l.cron.Stop().Done()
	}
}

// tickerOf returns the ticker encoded in the given file name.
func tickerOf(name string) string {
	if strings.HasSuffix(name, leaderLogSuffix) {
		return strings.TrimSuffix(name, leaderLogSuffix)
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// archiveName prefixes the given file name with the given time.
func archiveName(t time.Time, name string) string {
	t = t.UTC()
	return fmt.Sprintf("%s_%03d_%s", t.Format("2006_01_02_15_04_05"), t.Nanosecond()/int(time.Millisecond),
		name)
}

func moveFile(source, target string) error {
	err := os.MkdirAll(filepath.Dir(target), 0o755)
	if err != nil {
		return err
	}
	return os.Rename(source, target)
}

// countFailure increments the failure count of the given file and returns
// the new count.
func countFailure(path string) int {
	counter := path + failureCountSuffix
	failures := 0
	data, err := os.ReadFile(counter)
	if err == nil {
		failures, err = strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			log.Warnf("resetting the malformed failure count '%s'", counter)
			failures = 0
		}
	}
	failures++
	err = os.WriteFile(counter, []byte(strconv.Itoa(failures)), 0o644)
	if err != nil {
		log.Errorf("couldn't write the failure count '%s': %s", counter, err.Error())
	}
	return failures
}

func removeFailureCount(path string) {
	err := os.Remove(path + failureCountSuffix)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("couldn't remove the failure count of '%s': %s", path, err.Error())
	}
}
