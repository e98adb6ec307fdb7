package bridge

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rmacdonaldsmith/meshbroker/pkg/bridge"
)

var (
	// ErrUnsupportedProperty is returned for a property value that has no wire form
	ErrUnsupportedProperty = errors.New("unsupported property type")

	// ErrMalformedMessage is returned when a wire message is missing fields or has bad values
	ErrMalformedMessage = errors.New("malformed bridge message")
)

// Wire field names.
const (
	fieldOrigin     = "origin"
	fieldTopic      = "topic"
	fieldID         = "id"
	fieldPriority   = "priority"
	fieldPayload    = "payload"
	fieldProperties = "properties"
	fieldTimestamp  = "timestamp"
)

// Property kinds. Each property travels as a one-field struct naming its
// kind, so integers survive the trip as integers.
const (
	kindInt    = "int"
	kindFloat  = "float"
	kindString = "string"
	kindBool   = "bool"
	kindBytes  = "bytes"
	kindNull   = "null"
)

// ToStruct encodes a message as a protobuf Struct.
func ToStruct(msg bridge.Message) (*structpb.Struct, error) {
	props := make(map[string]*structpb.Value, len(msg.Properties))
	for name, v := range msg.Properties {
		pv, err := encodeProperty(v)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		props[name] = pv
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldOrigin:     structpb.NewStringValue(msg.Origin),
		fieldTopic:      structpb.NewStringValue(msg.Topic),
		fieldID:         structpb.NewStringValue(strconv.FormatUint(msg.ID, 10)),
		fieldPriority:   structpb.NewNumberValue(float64(msg.Priority)),
		fieldPayload:    structpb.NewStringValue(base64.StdEncoding.EncodeToString(msg.Payload)),
		fieldProperties: structpb.NewStructValue(&structpb.Struct{Fields: props}),
		fieldTimestamp:  structpb.NewStringValue(msg.Timestamp.UTC().Format(time.RFC3339Nano)),
	}}, nil
}

// FromStruct decodes a message encoded with ToStruct.
func FromStruct(s *structpb.Struct) (bridge.Message, error) {
	fields := s.GetFields()
	var msg bridge.Message

	msg.Topic = fields[fieldTopic].GetStringValue()
	if msg.Topic == "" {
		return msg, fmt.Errorf("%w: missing topic", ErrMalformedMessage)
	}
	msg.Origin = fields[fieldOrigin].GetStringValue()

	id, err := strconv.ParseUint(fields[fieldID].GetStringValue(), 10, 64)
	if err != nil {
		return msg, fmt.Errorf("%w: id: %w", ErrMalformedMessage, err)
	}
	msg.ID = id
	msg.Priority = int(fields[fieldPriority].GetNumberValue())

	payload, err := base64.StdEncoding.DecodeString(fields[fieldPayload].GetStringValue())
	if err != nil {
		return msg, fmt.Errorf("%w: payload: %w", ErrMalformedMessage, err)
	}
	msg.Payload = payload

	if ts := fields[fieldTimestamp].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return msg, fmt.Errorf("%w: timestamp: %w", ErrMalformedMessage, err)
		}
		msg.Timestamp = t
	}

	props := fields[fieldProperties].GetStructValue().GetFields()
	msg.Properties = make(map[string]any, len(props))
	for name, pv := range props {
		v, err := decodeProperty(pv)
		if err != nil {
			return msg, fmt.Errorf("%w: property %s: %w", ErrMalformedMessage, name, err)
		}
		msg.Properties[name] = v
	}
	return msg, nil
}

// Marshal encodes a message in protobuf binary form, as published by
// the NATS and Redis sinks.
func Marshal(msg bridge.Message) ([]byte, error) {
	s, err := ToStruct(msg)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// Unmarshal decodes a message encoded with Marshal.
func Unmarshal(data []byte) (bridge.Message, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return bridge.Message{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return FromStruct(&s)
}

func encodeProperty(v any) (*structpb.Value, error) {
	var kind string
	var value *structpb.Value
	switch x := v.(type) {
	case nil:
		kind, value = kindNull, structpb.NewBoolValue(true)
	case bool:
		kind, value = kindBool, structpb.NewBoolValue(x)
	case string:
		kind, value = kindString, structpb.NewStringValue(x)
	case []byte:
		kind, value = kindBytes, structpb.NewStringValue(base64.StdEncoding.EncodeToString(x))
	case int:
		kind, value = kindInt, structpb.NewStringValue(strconv.FormatInt(int64(x), 10))
	case int8:
		kind, value = kindInt, structpb.NewStringValue(strconv.FormatInt(int64(x), 10))
	case int16:
		kind, value = kindInt, structpb.NewStringValue(strconv.FormatInt(int64(x), 10))
	case int32:
		kind, value = kindInt, structpb.NewStringValue(strconv.FormatInt(int64(x), 10))
	case int64:
		kind, value = kindInt, structpb.NewStringValue(strconv.FormatInt(x, 10))
	case uint8:
		kind, value = kindInt, structpb.NewStringValue(strconv.FormatInt(int64(x), 10))
	case uint16:
		kind, value = kindInt, structpb.NewStringValue(strconv.FormatInt(int64(x), 10))
	case uint32:
		kind, value = kindInt, structpb.NewStringValue(strconv.FormatInt(int64(x), 10))
	case float32:
		kind, value = kindFloat, structpb.NewNumberValue(float64(x))
	case float64:
		kind, value = kindFloat, structpb.NewNumberValue(x)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedProperty, v)
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{kind: value}}), nil
}

func decodeProperty(pv *structpb.Value) (any, error) {
	fields := pv.GetStructValue().GetFields()
	if len(fields) != 1 {
		return nil, errors.New("expected exactly one kind")
	}
	for kind, v := range fields {
		switch kind {
		case kindNull:
			return nil, nil
		case kindBool:
			return v.GetBoolValue(), nil
		case kindString:
			return v.GetStringValue(), nil
		case kindBytes:
			return base64.StdEncoding.DecodeString(v.GetStringValue())
		case kindInt:
			return strconv.ParseInt(v.GetStringValue(), 10, 64)
		case kindFloat:
			return v.GetNumberValue(), nil
		}
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	return nil, nil
}
