package logtree

import (
	"sort"
	"strings"
)

// Group is a named section of a log file.
type Group struct {
	Name  string
	Lines []string
}

// StructuredLog is the ordered set of groups built from one log file.
type StructuredLog struct {
	Groups []Group
}

// Names returns the group names in order.
func (s StructuredLog) Names() []string {
	names := make([]string, len(s.Groups))
	for i, g := range s.Groups {
		names[i] = g.Name
	}
	return names
}

// Lines returns the lines of the named group.
func (s StructuredLog) Lines(name string) ([]string, bool) {
	for _, g := range s.Groups {
		if g.Name == name {
			return g.Lines, true
		}
	}
	return nil, false
}

// Node converts the log into a branch of group name -> lines.
func (s StructuredLog) Node() Node {
	b := NewBranch()
	for _, g := range s.Groups {
		b.Set(g.Name, Lines(g.Lines...))
	}
	return BranchNode(b)
}

// MarshalJSON encodes the log as an object of group name -> lines.
func (s StructuredLog) MarshalJSON() ([]byte, error) {
	return s.Node().MarshalJSON()
}

// structurer folds log lines into groups. Between a group marker and its end
// marker the open group's lines accumulate in pending.
type structurer struct {
	groups     []Group
	index      map[string]int
	open       bool
	current    string
	pending    []string
	sawGroup   bool
	sawContent bool
	denoised   []string
}

// Structure groups one log file's raw lines by their ##[group] markers.
// Lines are stripped of ANSI codes and timestamps, setup boilerplate is
// dropped, and the resulting groups are ordered by StepNumber.
//
// A group that captured no lines holds [NoAdditionalLogs]. Lines outside any
// group go to SingleLogsGroup. A file without content yields
// {NoLogsFoundGroup: []}.
func Structure(lines []string) StructuredLog {
	s := &structurer{index: make(map[string]int)}
	for _, raw := range lines {
		s.step(raw)
	}
	return s.finish()
}

func (s *structurer) step(raw string) {
	line := StripTimestamp(StripANSI(raw))
	if IsSetupNoise(line) {
		return
	}

	switch {
	case strings.HasPrefix(line, GroupStartMarker):
		s.flush()
		s.open = true
		s.current = strings.TrimSpace(strings.TrimPrefix(line, GroupStartMarker))
		s.pending = nil
		s.sawGroup = true
	case strings.HasPrefix(line, GroupEndMarker):
		s.flush()
		s.open = false
		s.current = ""
		s.pending = nil
	default:
		s.sawContent = true
		s.denoised = append(s.denoised, line)
		if s.open {
			s.pending = append(s.pending, line)
		} else {
			s.appendSingle(line)
		}
	}
}

// flush stores the open group's pending lines, if a group is open.
func (s *structurer) flush() {
	if !s.open {
		return
	}
	if len(s.pending) == 0 {
		s.set(s.current, []string{NoAdditionalLogs})
		return
	}
	s.set(s.current, s.pending)
}

// set stores lines under name. A name seen before keeps its first position.
func (s *structurer) set(name string, lines []string) {
	if i, ok := s.index[name]; ok {
		s.groups[i].Lines = lines
		return
	}
	s.index[name] = len(s.groups)
	s.groups = append(s.groups, Group{Name: name, Lines: lines})
}

func (s *structurer) appendSingle(line string) {
	if i, ok := s.index[SingleLogsGroup]; ok {
		s.groups[i].Lines = append(s.groups[i].Lines, line)
		return
	}
	s.set(SingleLogsGroup, []string{line})
}

func (s *structurer) finish() StructuredLog {
	s.flush()

	if !s.sawGroup && s.sawContent {
		s.set(SingleLogsGroup, s.denoised)
	}
	if !s.sawContent {
		s.set(NoLogsFoundGroup, []string{})
	}

	groups := make([]Group, len(s.groups))
	copy(groups, s.groups)
	sortGroups(groups)
	return StructuredLog{Groups: groups}
}

func sortGroups(groups []Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		return StepNumber(groups[i].Name) < StepNumber(groups[j].Name)
	})
}
