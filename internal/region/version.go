package region

import "slices"

// Snapshot records the versions of a set of regions at one moment.
// It is immutable once created.
type Snapshot struct {
	global   uint64
	versions map[ID]uint64
}

// Global is the manager's global version when the snapshot was taken.
func (s Snapshot) Global() uint64 { return s.global }

// Regions returns the ids covered by the snapshot, ascending.
func (s Snapshot) Regions() []ID {
	out := make([]ID, 0, len(s.versions))
	for id := range s.versions {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Covers reports whether the snapshot depends on region id.
func (s Snapshot) Covers(id ID) bool {
	_, ok := s.versions[id]
	return ok
}

// Version returns the version of id captured by the snapshot and whether the
// snapshot covers id at all.
func (s Snapshot) Version(id ID) (uint64, bool) {
	v, ok := s.versions[id]
	return v, ok
}

// VersionManager keeps a monotonically increasing version per region plus a
// global counter bumped on every change. Versions never decrease, so a
// snapshot cannot become valid again once invalidated.
type VersionManager struct {
	versions map[ID]uint64
	global   uint64
	dirty    map[ID]struct{}
}

func NewVersionManager() *VersionManager {
	return &VersionManager{
		versions: make(map[ID]uint64),
		dirty:    make(map[ID]struct{}),
	}
}

// Version returns the current version of id (0 if never changed).
func (vm *VersionManager) Version(id ID) uint64 { return vm.versions[id] }

func (vm *VersionManager) Global() uint64 { return vm.global }

// MarkChanged bumps every listed region and the global counter once.
func (vm *VersionManager) MarkChanged(ids ...ID) {
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		vm.versions[id]++
		vm.dirty[id] = struct{}{}
	}
	vm.global++
}

// CreateSnapshot captures the current versions of ids.
func (vm *VersionManager) CreateSnapshot(ids []ID) Snapshot {
	s := Snapshot{global: vm.global, versions: make(map[ID]uint64, len(ids))}
	for _, id := range ids {
		s.versions[id] = vm.versions[id]
	}
	return s
}

// Validate reports whether every region in s is still at its captured
// version.
func (vm *VersionManager) Validate(s Snapshot) bool {
	if s.global == vm.global {
		return true
	}
	for id, v := range s.versions {
		if vm.versions[id] != v {
			return false
		}
	}
	return true
}

// ConsumeDirty returns the regions changed since the last call, ascending,
// and clears the set.
func (vm *VersionManager) ConsumeDirty() []ID {
	if len(vm.dirty) == 0 {
		return nil
	}
	out := make([]ID, 0, len(vm.dirty))
	for id := range vm.dirty {
		out = append(out, id)
	}
	clear(vm.dirty)
	slices.Sort(out)
	return out
}
