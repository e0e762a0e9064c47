package backend

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Operations understood on the wire. Requests and responses are newline-delimited JSON.
const (
	opGetFloat  = "get_float"
	opWaitFloat = "wait_float"
	opGetInt    = "get_int"
	opSetFloat  = "set_float"
	opSetInt    = "set_int"
	opHandle    = "handle"
	opForce     = "force"
	opPosition  = "position"
)

type request struct {
	ID         uint64  `json:"id"`
	Op         string  `json:"op"`
	Name       string  `json:"name,omitempty"`
	Value      float64 `json:"value,omitempty"`
	Int        int     `json:"int,omitempty"`
	Handle     int     `json:"handle,omitempty"`
	RelativeTo int     `json:"relative_to,omitempty"`
	Ack        bool    `json:"ack,omitempty"`
}

// expectsResponse reports whether the peer answers this request. Unacknowledged sets are
// oneshot.
func (r *request) expectsResponse() bool {
	switch r.Op {
	case opSetFloat, opSetInt:
		return r.Ack
	default:
		return true
	}
}

type response struct {
	ID     uint64      `json:"id"`
	Error  string      `json:"error,omitempty"`
	Value  float64     `json:"value,omitempty"`
	Int    int         `json:"int,omitempty"`
	Vector *[3]float64 `json:"vector,omitempty"`
	Force  *[3]float64 `json:"force,omitempty"`
	Torque *[3]float64 `json:"torque,omitempty"`
}

func toArray(v r3.Vector) *[3]float64 {
	return &[3]float64{v.X, v.Y, v.Z}
}

func fromArray(a *[3]float64) r3.Vector {
	if a == nil {
		return r3.Vector{}
	}
	return r3.Vector{X: a[0], Y: a[1], Z: a[2]}
}

// handle executes req against c and builds the response.
func handle(ctx context.Context, c Client, req *request) *response {
	resp := &response{ID: req.ID}
	var err error
	switch req.Op {
	case opGetFloat:
		resp.Value, err = c.GetFloatSignal(ctx, req.Name)
	case opWaitFloat:
		resp.Value, err = c.WaitFloatSignal(ctx, req.Name)
	case opGetInt:
		resp.Int, err = c.GetIntegerSignal(ctx, req.Name)
	case opSetFloat:
		err = c.SetFloatSignal(ctx, req.Name, req.Value, req.Ack)
	case opSetInt:
		err = c.SetIntegerSignal(ctx, req.Name, req.Int, req.Ack)
	case opHandle:
		resp.Int, err = c.ObjectHandle(ctx, req.Name)
	case opForce:
		var reading ForceReading
		reading, err = c.ReadForceSensor(ctx, req.Handle)
		if err == nil {
			resp.Int = reading.State
			resp.Force = toArray(reading.Force)
			resp.Torque = toArray(reading.Torque)
		}
	case opPosition:
		var pos r3.Vector
		pos, err = c.ObjectPosition(ctx, req.Handle, req.RelativeTo)
		if err == nil {
			resp.Vector = toArray(pos)
		}
	default:
		err = errors.Errorf("unknown op %q", req.Op)
	}
	resp.Error = codeFromError(err)
	return resp
}
