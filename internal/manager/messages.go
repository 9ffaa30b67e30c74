package manager

import (
	"github.com/qumulus-db/qumulus/internal/listener"
	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/zone"
)

// call is the manager mailbox's closed message set, dispatched by
// type switch for the same reason zone's call type is: Go has no
// enum-with-payload.
type call interface {
	isManagerCall()
}

type requestLoadCall struct {
	zh *zone.Handle
}

type zoneHibernatedCall struct {
	zh *zone.Handle
}

type routeExternalCall struct {
	zonePath  path.Path
	ext       node.External
	forwarded []*listener.Listener
}

type findNearestReply struct {
	matched path.Path
	handle  *zone.Handle
}

type findNearestCall struct {
	path  path.Path
	reply chan findNearestReply
}

type findReply struct {
	handle *zone.Handle
	ok     bool
}

type findCall struct {
	path  path.Path
	reply chan findReply
}

type loadCall struct {
	path  path.Path
	reply chan *zone.Handle
}

type statsReply struct {
	Zones   int
	Loaded  int
	Waiting int
}

type statsCall struct {
	reply chan statsReply
}

type listZonesCall struct {
	reply chan []path.Path
}

func (requestLoadCall) isManagerCall()   {}
func (zoneHibernatedCall) isManagerCall() {}
func (routeExternalCall) isManagerCall() {}
func (findNearestCall) isManagerCall()   {}
func (findCall) isManagerCall()          {}
func (loadCall) isManagerCall()          {}
func (statsCall) isManagerCall()         {}
func (listZonesCall) isManagerCall()     {}
