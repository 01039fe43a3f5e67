package ros

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
)

type paramKind uint8

const (
	kindBool paramKind = iota
	kindInt
	kindDouble
	kindStr
)

// ParamUpdateFunc is called after every accepted parameter update with the
// sorted names that changed and a copy of the full parameter set. Updates
// are serialized: at most one callback runs at a time.
type ParamUpdateFunc func(changed []string, snapshot map[string]any)

// BoolParameter is a dynamic_reconfigure/BoolParameter.
type BoolParameter struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

// IntParameter is a dynamic_reconfigure/IntParameter.
type IntParameter struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// DoubleParameter is a dynamic_reconfigure/DoubleParameter.
type DoubleParameter struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// StrParameter is a dynamic_reconfigure/StrParameter.
type StrParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ConfigMsg is a dynamic_reconfigure/Config: the full parameter state
// grouped by value type.
type ConfigMsg struct {
	Bools   []BoolParameter   `json:"bools"`
	Ints    []IntParameter    `json:"ints"`
	Strs    []StrParameter    `json:"strs"`
	Doubles []DoubleParameter `json:"doubles"`
}

type reconfigureRequest struct {
	Config ConfigMsg `json:"config"`
}

type reconfigureResponse struct {
	Config ConfigMsg `json:"config"`
}

type paramChange struct {
	name  string
	value any
}

// ParamServer exposes a live-tunable parameter set under a namespace:
// dynamic_reconfigure's Reconfigure service on <namespace>/set_parameters
// and the full state on <namespace>/parameter_updates after every change.
//
// The value type of each parameter is fixed by its default; updates are
// coerced to it, and a value that will not coerce is ignored with a
// warning, as is an unknown name. Every accepted name in a request counts
// as changed whether or not its value differs.
type ParamServer struct {
	namespace string
	logger    golog.Logger
	cb        ParamUpdateFunc
	kinds     map[string]paramKind

	// updateMu serializes whole updates (service calls and Update);
	// mu guards the parameter map itself.
	updateMu sync.Mutex
	mu       sync.Mutex
	params   map[string]any

	updates *Publisher
	service *Service
}

// NewParamServer advertises a parameter server for the given defaults and
// publishes the initial state.
func NewParamServer(
	client *Client,
	namespace string,
	defaults map[string]any,
	cb ParamUpdateFunc,
	logger golog.Logger,
) (*ParamServer, error) {
	s := &ParamServer{
		namespace: namespace,
		logger:    logger,
		cb:        cb,
		kinds:     make(map[string]paramKind, len(defaults)),
		params:    make(map[string]any, len(defaults)),
	}
	for name, value := range defaults {
		switch value.(type) {
		case bool:
			s.kinds[name] = kindBool
		case string:
			s.kinds[name] = kindStr
		case float32, float64:
			s.kinds[name] = kindDouble
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			s.kinds[name] = kindInt
		default:
			return nil, errors.Errorf("parameter %q has unsupported type %T", name, value)
		}
		coerced, err := coerceParam(value, s.kinds[name])
		if err != nil {
			return nil, errors.Wrapf(err, "parameter %q", name)
		}
		s.params[name] = coerced
	}

	updates, err := client.Advertise(namespace+"/parameter_updates", ReconfigureConfig)
	if err != nil {
		return nil, err
	}
	s.updates = updates
	service, err := client.AdvertiseService(namespace+"/set_parameters", ReconfigureService, s.handleSetParameters)
	if err != nil {
		return nil, multierr.Combine(err, updates.Close())
	}
	s.service = service

	if err := s.updates.Publish(s.configMsg()); err != nil {
		logger.Warnw("cannot publish initial parameter state", "namespace", namespace, "error", err)
	}
	return s, nil
}

// Namespace returns the server's namespace.
func (s *ParamServer) Namespace() string { return s.namespace }

func (s *ParamServer) handleSetParameters(args json.RawMessage) (any, error) {
	var req reconfigureRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, errors.Wrap(err, "cannot parse reconfigure request")
	}
	var changes []paramChange
	for _, p := range req.Config.Bools {
		changes = append(changes, paramChange{p.Name, p.Value})
	}
	for _, p := range req.Config.Ints {
		changes = append(changes, paramChange{p.Name, p.Value})
	}
	for _, p := range req.Config.Strs {
		changes = append(changes, paramChange{p.Name, p.Value})
	}
	for _, p := range req.Config.Doubles {
		changes = append(changes, paramChange{p.Name, p.Value})
	}
	s.apply(changes)
	return reconfigureResponse{Config: s.configMsg()}, nil
}

// Update applies a programmatic parameter change through the same
// validation, mirroring, and notification path as a service call.
func (s *ParamServer) Update(changes map[string]any) {
	names := make([]string, 0, len(changes))
	for name := range changes {
		names = append(names, name)
	}
	sort.Strings(names)
	ordered := make([]paramChange, 0, len(names))
	for _, name := range names {
		ordered = append(ordered, paramChange{name, changes[name]})
	}
	s.apply(ordered)
}

func (s *ParamServer) apply(changes []paramChange) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	var changed []string
	s.mu.Lock()
	for _, ch := range changes {
		kind, ok := s.kinds[ch.name]
		if !ok {
			s.logger.Warnw("ignoring unknown parameter", "namespace", s.namespace, "name", ch.name)
			continue
		}
		value, err := coerceParam(ch.value, kind)
		if err != nil {
			s.logger.Warnw("ignoring parameter with bad value",
				"namespace", s.namespace, "name", ch.name, "error", err)
			continue
		}
		s.params[ch.name] = value
		changed = append(changed, ch.name)
	}
	snapshot := copyParams(s.params)
	s.mu.Unlock()

	if len(changed) == 0 {
		return
	}
	sort.Strings(changed)
	if err := s.updates.Publish(configFromParams(snapshot, s.kinds)); err != nil {
		s.logger.Warnw("cannot publish parameter update", "namespace", s.namespace, "error", err)
	}
	if s.cb != nil {
		s.cb(changed, snapshot)
	}
}

// Snapshot returns a copy of the current parameter state.
func (s *ParamServer) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyParams(s.params)
}

func (s *ParamServer) configMsg() ConfigMsg {
	return configFromParams(s.Snapshot(), s.kinds)
}

// Close unadvertises the service and the updates topic.
func (s *ParamServer) Close() error {
	return multierr.Combine(s.service.Close(), s.updates.Close())
}

func coerceParam(value any, kind paramKind) (any, error) {
	switch kind {
	case kindBool:
		return cast.ToBoolE(value)
	case kindInt:
		return cast.ToIntE(value)
	case kindDouble:
		return cast.ToFloat64E(value)
	case kindStr:
		return cast.ToStringE(value)
	}
	return nil, errors.Errorf("unknown parameter kind %d", kind)
}

func copyParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for name, value := range params {
		out[name] = value
	}
	return out
}

func configFromParams(params map[string]any, kinds map[string]paramKind) ConfigMsg {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var msg ConfigMsg
	for _, name := range names {
		switch kinds[name] {
		case kindBool:
			msg.Bools = append(msg.Bools, BoolParameter{name, cast.ToBool(params[name])})
		case kindInt:
			msg.Ints = append(msg.Ints, IntParameter{name, cast.ToInt(params[name])})
		case kindDouble:
			msg.Doubles = append(msg.Doubles, DoubleParameter{name, cast.ToFloat64(params[name])})
		case kindStr:
			msg.Strs = append(msg.Strs, StrParameter{name, cast.ToString(params[name])})
		}
	}
	return msg
}
