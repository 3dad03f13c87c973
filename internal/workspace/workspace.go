// Package workspace holds the per-session lab state: the registered
// dataset, lesson settings, guest progress and the bound account.
package workspace

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/datagym/internal/dataset"
	"github.com/ashureev/datagym/internal/domain"
)

// GuestName is the display name of a workspace with no bound account.
const GuestName = "Guest"

// Key identifies a workspace: one per device and browser tab.
type Key struct {
	DeviceID  string
	SessionID string
}

func (k Key) String() string {
	return k.DeviceID + ":" + k.SessionID
}

// Workspace is the state of one learner session. All methods are safe for
// concurrent use.
type Workspace struct {
	key Key

	mu         sync.Mutex
	reg        *dataset.Registration
	lastUpload string
	track      domain.Track
	difficulty domain.Difficulty
	progress   domain.Progress
	accountID  string
	username   string
	lastSeen   time.Time
	clock      func() time.Time

	running atomic.Bool
}

func newWorkspace(key Key, clock func() time.Time) *Workspace {
	return &Workspace{
		key:        key,
		track:      domain.TrackSQL,
		difficulty: domain.Beginner,
		lastSeen:   clock(),
		clock:      clock,
	}
}

// Key returns the workspace key.
func (w *Workspace) Key() Key {
	return w.key
}

// Registration returns the registered dataset, or nil.
func (w *Workspace) Registration() *dataset.Registration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reg
}

// LastUpload returns the file name of the last accepted upload.
func (w *Workspace) LastUpload() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastUpload
}

// Upload registers the dataset produced by parse under fileName. An upload
// with the same name as the last accepted one is ignored until Reset, and
// changed is false. If parse or registration fails the workspace is left as
// it was.
func (w *Workspace) Upload(fileName string, parse func() (*dataset.Dataset, error)) (reg *dataset.Registration, changed bool, err error) {
	w.mu.Lock()
	if fileName == w.lastUpload && w.reg != nil {
		reg = w.reg
		w.mu.Unlock()
		return reg, false, nil
	}
	w.mu.Unlock()

	ds, err := parse()
	if err != nil {
		return nil, false, err
	}
	reg, err = dataset.Register(fileName, ds)
	if err != nil {
		return nil, false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.reg = reg
	w.lastUpload = fileName
	return reg, true, nil
}

// Reset clears the registration and the last-upload marker together.
func (w *Workspace) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reg = nil
	w.lastUpload = ""
}

// Settings returns the selected track and difficulty.
func (w *Workspace) Settings() (domain.Track, domain.Difficulty) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.track, w.difficulty
}

// SetSettings selects the track and difficulty.
func (w *Workspace) SetSettings(track domain.Track, difficulty domain.Difficulty) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.track = track
	w.difficulty = difficulty
}

// Progress returns the workspace copy of the learner's progress.
func (w *Workspace) Progress() domain.Progress {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.progress
}

// SetProgress replaces the workspace copy of the learner's progress.
func (w *Workspace) SetProgress(p domain.Progress) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.progress = p
}

// Award adds one completed task to the workspace progress.
func (w *Workspace) Award() domain.Progress {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.progress = w.progress.Award()
	return w.progress
}

// Account returns the bound account id and the display name. The id is
// empty for guests.
func (w *Workspace) Account() (accountID, username string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.accountID == "" {
		return "", GuestName
	}
	return w.accountID, w.username
}

// Bind attaches an account, taking over its stored progress.
func (w *Workspace) Bind(a *domain.Account) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.accountID = a.UserID
	w.username = a.Username
	w.progress = a.Progress()
}

// Unbind detaches the account and resets progress to a fresh guest.
func (w *Workspace) Unbind() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.accountID = ""
	w.username = ""
	w.progress = domain.Progress{}
}

// LastSeen returns the time the workspace was last used.
func (w *Workspace) LastSeen() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// Touch marks the workspace as used now. Anything that acts on a
// workspace without going through Manager.Get must call it, or the sweeper
// treats the workspace as idle.
func (w *Workspace) Touch() {
	now := w.clock()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSeen = now
}

// TryBeginRun marks a run as in progress. It returns false if one already is.
func (w *Workspace) TryBeginRun() bool {
	return w.running.CompareAndSwap(false, true)
}

// EndRun clears the in-progress mark.
func (w *Workspace) EndRun() {
	w.running.Store(false)
}

// Running reports whether a run is in progress.
func (w *Workspace) Running() bool {
	return w.running.Load()
}
