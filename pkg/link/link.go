// Package link implements the directed, typed edges between jobs described
// in spec.md §3 ("JobDependency") and §4.2. A Link records that a subject
// job pulled in an object job, and whether that pull matters (participates
// in essential-job propagation, reconciler Pass 1) or represents a conflict
// (the object is a Stop forced into existence by the subject's presence).
//
// Links are threaded into both endpoints' SubjectList/ObjectList as an
// intrusive multigraph, per the arena/index guidance of spec.md §9 rather
// than shared-ownership references: New appends to both lists, Free removes
// from both by identity.
package link

import "github.com/BryanQuigley/systemd/pkg/job"

// Link is a directed edge: Subject pulled in Object.
type Link struct {
	Subject *job.Job
	Object  *job.Job

	matters   bool
	conflicts bool
}

var _ job.LinkRef = (*Link)(nil)

// Matters reports whether this link participates in matters-to-anchor propagation.
func (l *Link) Matters() bool { return l.matters }

// Conflicts reports whether this link represents a conflicted-by pull: the
// subject's existence forces the object (a Stop) to exist.
func (l *Link) Conflicts() bool { return l.conflicts }

// Other returns the endpoint of the link that is not from. Panics if from
// is neither endpoint, which would indicate a bookkeeping bug in the
// reconciler.
func (l *Link) Other(from *job.Job) *job.Job {
	switch from {
	case l.Subject:
		return l.Object
	case l.Object:
		return l.Subject
	default:
		panic("link: from is not an endpoint of this link")
	}
}

// New constructs a link from subject to object and threads it into both
// endpoints' lists.
func New(subject, object *job.Job, matters, conflicts bool) *Link {
	l := &Link{Subject: subject, Object: object, matters: matters, conflicts: conflicts}
	subject.SubjectList = append(subject.SubjectList, l)
	object.ObjectList = append(object.ObjectList, l)
	return l
}

// Free removes l from both endpoints' lists.
func Free(l *Link) { l.Free() }

// Free removes l from both endpoints' lists. It does not cascade — callers
// that need the "matters" cascade of spec.md §4.4 ("delete semantics")
// implement that at the transaction level, where both endpoints' owning
// jobs are visible.
func (l *Link) Free() {
	l.Subject.SubjectList = removeLink(l.Subject.SubjectList, l)
	l.Object.ObjectList = removeLink(l.Object.ObjectList, l)
}

func removeLink(list []job.LinkRef, target *Link) []job.LinkRef {
	out := list[:0]
	for _, l := range list {
		if l != job.LinkRef(target) {
			out = append(out, l)
		}
	}
	return out
}

// Repoint moves l's endpoint that currently equals from to to. Used by
// reconciler Pass 6 when collapsing several same-unit jobs into a single
// survivor: rather than re-creating links, the survivor absorbs its dead
// peers' links in place.
func Repoint(l *Link, from, to *job.Job) {
	switch from {
	case l.Subject:
		l.Subject = to
	case l.Object:
		l.Object = to
	default:
		panic("link: from is not an endpoint of this link")
	}
}
