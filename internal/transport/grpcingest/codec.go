package grpcingest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"tour-counter-go/internal/models"
)

// Wire field names of the PushTick request and response
const (
	fieldGateID      = "gate_id"
	fieldTimestampMS = "timestamp_ms"
	fieldEntities    = "entities"
	fieldID          = "id"
	fieldX           = "x"
	fieldY           = "y"
	fieldMalformed   = "malformed"
	fieldAccepted    = "accepted"
)

var errInvalidPayload = errors.New("invalid tick payload")

// decodeTick reads a PushTick request. Entities with missing or non-numeric
// fields are kept with those fields unset so the detector rejects them per entity.
func decodeTick(in *structpb.Struct, now time.Time) (string, models.Tick, error) {
	fields := in.GetFields()

	gateID := ""
	if v, ok := fields[fieldGateID]; ok {
		s, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return "", models.Tick{}, fmt.Errorf("%w: %s must be a string", errInvalidPayload, fieldGateID)
		}
		gateID = s.StringValue
	}

	tick := models.Tick{Timestamp: now}
	if v, ok := fields[fieldTimestampMS]; ok {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok || !isWhole(n.NumberValue) {
			return "", models.Tick{}, fmt.Errorf("%w: %s must be an integer", errInvalidPayload, fieldTimestampMS)
		}
		tick.Timestamp = time.UnixMilli(int64(n.NumberValue))
	}

	if v, ok := fields[fieldEntities]; ok {
		list, ok := v.GetKind().(*structpb.Value_ListValue)
		if !ok {
			return "", models.Tick{}, fmt.Errorf("%w: %s must be a list", errInvalidPayload, fieldEntities)
		}
		for _, item := range list.ListValue.GetValues() {
			tick.Entities = append(tick.Entities, decodeEntity(item))
		}
	}

	return gateID, tick, nil
}

func decodeEntity(v *structpb.Value) models.EntityObservation {
	var obs models.EntityObservation
	s := v.GetStructValue()
	if s == nil {
		return obs
	}
	f := s.GetFields()

	if id, ok := number(f[fieldID]); ok && isWhole(id) {
		n := int64(id)
		obs.ID = &n
	}
	if x, ok := number(f[fieldX]); ok {
		obs.X = &x
	}
	if y, ok := number(f[fieldY]); ok {
		obs.Y = &y
	}
	return obs
}

func number(v *structpb.Value) (float64, bool) {
	if v == nil {
		return 0, false
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	return n.NumberValue, true
}

func isWhole(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f)
}

// encodeTick builds a PushTick request
func encodeTick(gateID string, tick models.Tick) (*structpb.Struct, error) {
	entities := make([]interface{}, 0, len(tick.Entities))
	for _, e := range tick.Entities {
		m := map[string]interface{}{}
		if e.ID != nil {
			m[fieldID] = float64(*e.ID)
		}
		if e.X != nil {
			m[fieldX] = *e.X
		}
		if e.Y != nil {
			m[fieldY] = *e.Y
		}
		entities = append(entities, m)
	}

	req := map[string]interface{}{
		fieldEntities: entities,
	}
	if gateID != "" {
		req[fieldGateID] = gateID
	}
	if !tick.Timestamp.IsZero() {
		req[fieldTimestampMS] = float64(tick.Timestamp.UnixMilli())
	}
	return structpb.NewStruct(req)
}

func encodeAccepted(a models.TickAccepted) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		fieldAccepted:    true,
		fieldGateID:      a.GateID,
		fieldTimestampMS: float64(a.Timestamp.UnixMilli()),
		fieldEntities:    float64(a.Entities),
		fieldMalformed:   float64(a.Malformed),
	})
}

func decodeAccepted(out *structpb.Struct) models.TickAccepted {
	f := out.GetFields()
	a := models.TickAccepted{GateID: f[fieldGateID].GetStringValue()}
	a.Timestamp = time.UnixMilli(int64(f[fieldTimestampMS].GetNumberValue()))
	a.Entities = int(f[fieldEntities].GetNumberValue())
	a.Malformed = int(f[fieldMalformed].GetNumberValue())
	return a
}
