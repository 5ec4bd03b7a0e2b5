package decide

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sells-group/projectmerge/internal/model"
)

// idNamespace scopes generated project identifiers.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("projectmerge/project-id"))

// awardPrefixes mark award identifiers that can serve as a project id.
var awardPrefixes = []string{"ASST", "CONT"}

// IDAllocator hands out identifiers that never collide with existing ones
// or with each other. Generated ids are derived from the record's
// provenance, so re-running the same batch yields the same ids.
type IDAllocator struct {
	mu   sync.Mutex
	used map[string]bool
}

// NewIDAllocator reserves the given existing identifiers.
func NewIDAllocator(existing []string) *IDAllocator {
	a := &IDAllocator{used: make(map[string]bool, len(existing))}
	for _, id := range existing {
		a.used[id] = true
	}
	return a
}

// Reserve marks id as taken. It reports false if it already was.
func (a *IDAllocator) Reserve(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reserve(id)
}

func (a *IDAllocator) reserve(id string) bool {
	if id == "" || a.used[id] {
		return false
	}
	a.used[id] = true
	return true
}

// Assign picks an id for a new record: a free award id found on the
// record, otherwise a generated "PROJ" id.
func (a *IDAllocator) Assign(p *model.Project) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, candidate := range awardIDs(p) {
		if a.reserve(candidate) {
			return candidate
		}
	}

	seed := p.Source.Schema + "|" + p.Source.File + "|" + strconv.Itoa(p.Source.Row) + "|" + p.Name
	for n := 0; ; n++ {
		s := seed
		if n > 0 {
			s += "#" + strconv.Itoa(n)
		}
		u := uuid.NewSHA1(idNamespace, []byte(s))
		id := "PROJ" + strings.ToUpper(strings.ReplaceAll(u.String(), "-", "")[:8])
		if a.reserve(id) {
			return id
		}
	}
}

// awardIDs returns award identifiers carried by the record: its own id
// and program id first, then raw column values in column-name order.
func awardIDs(p *model.Project) []string {
	var out []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		for _, prefix := range awardPrefixes {
			if strings.HasPrefix(v, prefix) {
				out = append(out, v)
				return
			}
		}
	}
	add(p.ID)
	add(p.ProgramID)

	keys := make([]string, 0, len(p.Raw))
	for k := range p.Raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(p.Raw[k])
	}
	return out
}
