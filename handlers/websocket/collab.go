package websocket

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"

	"codeshare-server/gateway"
	"codeshare-server/metrics"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/engine.io/v2/utils"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

type ackInvoker func(err error, payload map[string]any)

var errMalformedUpdate = errors.New("malformed updateCode payload")

// participant adapts a socket.io connection to rooms.Participant.
type participant struct {
	socket *socketio.Socket
}

func (p *participant) ID() string { return string(p.socket.Id()) }

func (p *participant) Emit(event string, args ...any) error {
	return p.socket.Emit(event, args...)
}

func SetupSocketIO(gw *gateway.Gateway, allowedOrigin string) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      allowedOrigin,
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}

		hs := handshakeFrom(socket.Handshake())
		session, err := gw.Connect(hs, &participant{socket: socket})
		if err != nil {
			utils.Log().Printf("rejecting socket %v: %v\n", socket.Id(), err)
			socket.Disconnect(true)
			return
		}
		log := logrus.WithFields(logrus.Fields{
			"socket_id":  string(socket.Id()),
			"session_id": session.ID(),
			"title":      session.Title(),
			"untitled":   session.Room().Untitled,
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On(gateway.EventUpdateCode, func(datas ...any) {
			ack, args := extractAck(datas)
			msg, err := parseUpdateCode(args)
			if err != nil {
				log.WithError(err).Warn("Dropping malformed update")
				metrics.ObserveUpdate(metrics.ResultMalformed, 0)
				respondWithAck(ack, makeAckPayload(err), err)
				return
			}

			err = session.Submit(msg)
			respondWithAck(ack, makeAckPayload(err), err)
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("disconnect", func(datas ...any) {
			log.WithField("reason", fmt.Sprint(datas...)).Debug("Socket disconnected")
			session.Disconnect()
			socket.RemoveAllListeners("")
		})
	})

	return srv
}

// handshakeFrom reads the room title from the connection query string.
func handshakeFrom(hs *socketio.Handshake) gateway.Handshake {
	if hs == nil {
		return gateway.Handshake{}
	}
	query := url.Values(hs.Query)
	return gateway.Handshake{
		Title:    query.Get("title"),
		HasTitle: query.Has("title"),
	}
}

// parseUpdateCode decodes the first event argument into an UpdateCode.
// Both fields must be present and be strings.
func parseUpdateCode(args []any) (gateway.UpdateCode, error) {
	if len(args) == 0 {
		return gateway.UpdateCode{}, fmt.Errorf("%w: no payload", errMalformedUpdate)
	}

	payload, ok := args[0].(map[string]any)
	if !ok {
		return gateway.UpdateCode{}, fmt.Errorf("%w: expected an object, got %T", errMalformedUpdate, args[0])
	}

	title, ok := payload["title"].(string)
	if !ok {
		return gateway.UpdateCode{}, fmt.Errorf("%w: title must be a string", errMalformedUpdate)
	}
	code, ok := payload["updatedCode"].(string)
	if !ok {
		return gateway.UpdateCode{}, fmt.Errorf("%w: updatedCode must be a string", errMalformedUpdate)
	}

	return gateway.UpdateCode{Title: title, UpdatedCode: code}, nil
}

func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}

	candidate := datas[len(datas)-1]
	ack = wrapAck(candidate)
	if ack == nil {
		return nil, datas
	}

	return ack, datas[:len(datas)-1]
}

func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}

	value := reflect.ValueOf(candidate)
	if !value.IsValid() || value.Kind() != reflect.Func {
		return nil
	}

	typ := value.Type()
	return func(err error, payload map[string]any) {
		args := buildAckArgs(typ, err, payload)
		value.Call(args)
	}
}

func buildAckArgs(typ reflect.Type, err error, payload map[string]any) []reflect.Value {
	numIn := typ.NumIn()
	if typ.IsVariadic() && numIn == 1 && typ.In(0).Elem().Kind() == reflect.Interface && typ.In(0).Elem().NumMethod() == 0 {
		// Call packs the variadic slice itself.
		return []reflect.Value{reflect.ValueOf(payload)}
	}
	args := make([]reflect.Value, numIn)

	for i := 0; i < numIn; i++ {
		paramType := typ.In(i)
		var argValue any

		switch {
		case numIn == 1:
			if err != nil {
				argValue = err
			} else {
				argValue = payload
			}
		case i == 0:
			argValue = err
		case i == 1:
			argValue = payload
		}

		args[i] = coerceValue(argValue, paramType)
	}

	return args
}

func coerceValue(value any, targetType reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(targetType)
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(targetType) {
		return rv
	}

	if rv.Type().ConvertibleTo(targetType) {
		return rv.Convert(targetType)
	}

	if targetType.Kind() == reflect.String {
		return reflect.ValueOf(fmt.Sprint(value)).Convert(targetType)
	}

	return reflect.Zero(targetType)
}

func respondWithAck(ack ackInvoker, payload map[string]any, ackErr error) {
	if ack != nil {
		ack(ackErr, payload)
	}
}

func makeAckPayload(ackErr error) map[string]any {
	response := map[string]any{
		"status": "ok",
	}

	if ackErr != nil {
		response["status"] = "error"
		response["error"] = ackErr.Error()
	}

	return response
}
