package reg

import (
	"sync"

	"github.com/wardenbot/warden/internal/db"
)

// registry keeps the per-community snapshots produced by the last sweep
// so the reassessment path can consult settings and risk posture without
// a database round trip.
type registry struct {
	mutex         sync.RWMutex
	settingsCache map[int64]*db.CommunitySettings
	reportCache   map[int64]*db.RiskReport
}

var instance *registry
var once sync.Once

func Get() *registry {
	once.Do(func() {
		instance = &registry{
			settingsCache: map[int64]*db.CommunitySettings{},
			reportCache:   map[int64]*db.RiskReport{},
		}
	})
	return instance
}

func (r *registry) GetSettings(communityID int64) *db.CommunitySettings {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.settingsCache[communityID]
}

func (r *registry) SetSettings(settings *db.CommunitySettings) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.settingsCache[settings.ID] = settings
}

func (r *registry) RemoveSettings(communityID int64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.settingsCache, communityID)
}

func (r *registry) GetReport(communityID int64) *db.RiskReport {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.reportCache[communityID]
}

func (r *registry) SetReport(report *db.RiskReport) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reportCache[report.CommunityID] = report
}
