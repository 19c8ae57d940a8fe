// Package protocol is the ASCII line protocol spoken with sensor nodes.
//
// Inbound:  SEND|<id>, DATA|<id>|Hum: <f> Tmp: <f>[ Soil: <f>], CONFIG|<id>
// Outbound: OK|<id>, ACK|<id>, CFG|<id>|TempTh:<f>|HumTh:<f>|SoilTh:<f>, NOCHANGEDATA|<id>
// Every line is terminated by CRLF.
package protocol

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/loragate/internal/node"
)

var ErrUnknownCommand = errors.New("unknown command")

// Command is closed set: Send, Data, Config.
type Command interface {
	NodeId() string
	command()
}

type Send struct{ Id string }
type Config struct{ Id string }
type Data struct {
	Id      string
	Hum     float32
	Temp    float32
	Soil    float32
	HasSoil bool
}

func (c Send) NodeId() string   { return c.Id }
func (c Config) NodeId() string { return c.Id }
func (c Data) NodeId() string   { return c.Id }
func (Send) command()           {}
func (Config) command()         {}
func (Data) command()           {}

// Parse one assembled line, one trailing '\r' is ignored.
// Returns ErrUnknownCommand when no keyword matched and NotValid error on malformed body.
func Parse(line []byte) (Command, error) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	i := bytes.IndexByte(line, '|')
	if i == -1 {
		return nil, ErrUnknownCommand
	}
	body := string(line[i+1:])
	switch string(line[:i]) {
	case "SEND":
		if err := node.ValidId(body); err != nil {
			return nil, errors.Annotate(err, "SEND")
		}
		return Send{Id: body}, nil

	case "CONFIG":
		if err := node.ValidId(body); err != nil {
			return nil, errors.Annotate(err, "CONFIG")
		}
		return Config{Id: body}, nil

	case "DATA":
		d, err := parseData(body)
		return d, errors.Annotate(err, "DATA")
	}
	return nil, ErrUnknownCommand
}

func parseData(body string) (Command, error) {
	id, fields, ok := strings.Cut(body, "|")
	if !ok {
		return nil, errors.NotValidf("fields missing")
	}
	if err := node.ValidId(id); err != nil {
		return nil, err
	}
	d := Data{Id: id}
	rest := fields
	var err error
	if d.Hum, rest, err = parseField(rest, "Hum:"); err != nil {
		return nil, err
	}
	if d.Temp, rest, err = parseField(rest, "Tmp:"); err != nil {
		return nil, err
	}
	if strings.TrimLeft(rest, " ") != "" {
		if d.Soil, rest, err = parseField(rest, "Soil:"); err != nil {
			return nil, err
		}
		d.HasSoil = true
	}
	if tail := strings.TrimLeft(rest, " "); tail != "" {
		return nil, errors.NotValidf("trailing %q", tail)
	}
	return d, nil
}

// parseField consumes `[ ]Key:[ ]<float>` from s.
func parseField(s, key string) (float32, string, error) {
	s = strings.TrimLeft(s, " ")
	if !strings.HasPrefix(s, key) {
		return 0, "", errors.NotValidf("expected %s in %q", key, s)
	}
	s = strings.TrimLeft(s[len(key):], " ")
	tok, rest, _ := strings.Cut(s, " ")
	f, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		// out of float32 range is stored as parsed: +-Inf or 0
		if ne, ok := err.(*strconv.NumError); !ok || ne.Err != strconv.ErrRange {
			return 0, "", errors.NotValidf("%s value=%q", key, tok)
		}
	}
	return float32(f), rest, nil
}
