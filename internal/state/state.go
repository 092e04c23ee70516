// Package state holds the per-session navigation state: what the user is
// doing, where they are, how results are sorted and which other profiles
// they may reach.
//
// State has a single writer, the action handler, running on the session's
// coordinating goroutine. Asynchronous work never reads State directly; it
// receives a Snapshot taken when the work was started.
package state

import (
	"fmt"

	"github.com/fruitsalade/docnav/internal/metrics"
	"github.com/fruitsalade/docnav/internal/sorting"
	"github.com/fruitsalade/docnav/internal/stack"
	"github.com/fruitsalade/docnav/pkg/models"
)

// Action is the mode the session was started in.
type Action int

const (
	ActionBrowse Action = iota
	ActionGetContent
	ActionOpenDocument
	ActionCreateDocument
	ActionOpenTree
	ActionPickCopyDestination
)

var actionNames = map[Action]string{
	ActionBrowse:              "browse",
	ActionGetContent:          "get_content",
	ActionOpenDocument:        "open_document",
	ActionCreateDocument:      "create_document",
	ActionOpenTree:            "open_tree",
	ActionPickCopyDestination: "pick_copy_destination",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction parses an action name as produced by String.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return ActionBrowse, fmt.Errorf("unknown action %q", s)
}

// IsPicking reports whether the session returns a selection to a caller.
func (a Action) IsPicking() bool {
	return a != ActionBrowse
}

// State is the mutable navigation state of one browsing session.
type State struct {
	Action Action
	Stack  *stack.Stack
	Sort   sorting.Spec

	// Self is the profile the session runs as.
	Self models.ProfileID

	// CanShareAcrossProfile is the legacy, coarse-grained consent flag.
	CanShareAcrossProfile bool

	// CanForwardToProfile holds per-profile consent. Entries are only
	// consulted when PerProfileConsent is enabled.
	CanForwardToProfile map[models.ProfileID]bool
	PerProfileConsent   bool
}

// New creates state for a session running as self.
func New(self models.ProfileID) *State {
	return &State{
		Action:              ActionBrowse,
		Stack:               &stack.Stack{},
		Sort:                sorting.Default(),
		Self:                self,
		CanForwardToProfile: make(map[models.ProfileID]bool),
		PerProfileConsent:   true,
	}
}

// SetProfileConsent records per-profile consent for p.
func (s *State) SetProfileConsent(p models.ProfileID, allowed bool) {
	if s.CanForwardToProfile == nil {
		s.CanForwardToProfile = make(map[models.ProfileID]bool)
	}
	s.CanForwardToProfile[p] = allowed
}

// ClearProfileConsent removes the per-profile entry for p so the legacy flag applies again.
func (s *State) ClearProfileConsent(p models.ProfileID) {
	delete(s.CanForwardToProfile, p)
}

// CanAccessProfile reports whether documents owned by p may be loaded.
// The own profile is always reachable. Otherwise a per-profile entry, when
// present and per-profile consent is enabled, wins over the legacy flag.
func (s *State) CanAccessProfile(p models.ProfileID) bool {
	if p == s.Self {
		return true
	}
	if s.PerProfileConsent {
		if allowed, ok := s.CanForwardToProfile[p]; ok {
			metrics.RecordAccessCheck(allowed)
			return allowed
		}
	}
	metrics.RecordAccessCheck(s.CanShareAcrossProfile)
	return s.CanShareAcrossProfile
}

// Snapshot is a read-only copy of what a load needs to know.
type Snapshot struct {
	Action   Action
	Root     models.Root
	HasRoot  bool
	Terminal models.Document
	HasDoc   bool
	Sort     sorting.Spec
	Self     models.ProfileID

	// TargetProfile is the profile owning the location being loaded and
	// CanAccessTarget the consent decision taken when the snapshot was made.
	TargetProfile   models.ProfileID
	CanAccessTarget bool
}

// Snapshot captures the current location and the consent decision for it.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Action: s.Action,
		Sort:   s.Sort,
		Self:   s.Self,
	}
	if s.Stack != nil {
		snap.Root, snap.HasRoot = s.Stack.Root()
		snap.Terminal, snap.HasDoc = s.Stack.Peek()
	}

	switch {
	case snap.HasDoc:
		snap.TargetProfile = snap.Terminal.Profile
	case snap.HasRoot:
		snap.TargetProfile = snap.Root.Profile
	default:
		snap.TargetProfile = s.Self
	}
	snap.CanAccessTarget = s.CanAccessProfile(snap.TargetProfile)
	return snap
}
