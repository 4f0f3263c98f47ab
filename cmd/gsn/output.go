package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorgonia/gsn"
	"github.com/gorgonia/gsn/encoding"
	"github.com/gorilla/websocket"
	"go.dedis.ch/onet/v3/log"
)

type info struct {
	Name    string `json:"name"`
	Epoch   int    `json:"epoch"`
	Caption string `json:"caption"`
}

// Encoder pushes a summary of every epoch to a websocket client,
// according to the gsn.OutputEncoder interface. Epochs are dropped while no
// client is listening.
type Encoder struct {
	info chan info
}

var upgrader = websocket.Upgrader{} // use default options

func (enc *Encoder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("upgrade:", err)
		return
	}
	defer c.Close()
	for {
		var b []byte
		select {
		case info := <-enc.info:
			b, _ = json.Marshal(info)
		case <-r.Context().Done():
			return
		}
		if err = c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Error("write:", err)
			return
		}
	}
}

// NewEncoder returns a websocket encoder.
func NewEncoder() *Encoder {
	return &Encoder{info: make(chan info)}
}

// Encode an epoch
func (enc *Encoder) Encode(ms encoding.MetaState) error {
	select {
	case enc.info <- info{Name: ms.Name(), Epoch: ms.Epoch(), Caption: ms.Caption()}:
	default:
	}
	return nil
}

// Flush ...
func (enc *Encoder) Flush() error { return nil }

// encoders fans a MetaState out to several encoders.
type encoders []gsn.OutputEncoder

func (es encoders) Encode(ms encoding.MetaState) error {
	for _, e := range es {
		if err := e.Encode(ms); err != nil {
			return err
		}
	}
	return nil
}

func (es encoders) Flush() error {
	for _, e := range es {
		if err := e.Flush(); err != nil {
			return err
		}
	}
	return nil
}
