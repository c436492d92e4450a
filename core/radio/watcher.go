package radio

import (
	"context"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"weradio/core/utils"
	"weradio/logger"
)

const watchDebounce = 2 * time.Second

// Watcher reloads the library when audio files appear or vanish under the
// library root out-of-band (scp, rsync, manual deletes). Producer role only;
// object-stored libraries have no filesystem to watch.
type Watcher struct {
	radio *Radio
	dir   string
	fsw   *fsnotify.Watcher
}

// NewWatcher watches dir for library changes.
func NewWatcher(radio *Radio, dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{radio: radio, dir: dir, fsw: fsw}, nil
}

// Run consumes events until ctx is done, collapsing bursts into one reload.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			logger.Debug("检测到音乐库变动", logger.String("file", event.Name))
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				fire = timer.C
			} else {
				timer.Reset(watchDebounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("音乐库监听错误", logger.ErrorField(err))

		case <-fire:
			timer = nil
			fire = nil
			logger.Info("音乐库变动，重新扫描")
			w.radio.Library.Load()
			w.radio.Queue.RefillIfEmpty()
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Remove) &&
		!event.Op.Has(fsnotify.Rename) && !event.Op.Has(fsnotify.Write) {
		return false
	}
	name := strings.ToLower(event.Name)
	for ext := range utils.AudioExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
