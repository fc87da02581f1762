package wire

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestHandshakeRoundTrip(t *testing.T) {
	for _, h := range []Handshake{HandshakeSesCtl, HandshakeSesVT, HandshakeSesPodUplink, HandshakeSesCLI} {
		var buf bytes.Buffer
		if err := WriteHandshake(&buf, h); err != nil {
			t.Fatalf("WriteHandshake: %v", err)
		}
		got, err := ReadHandshake(&buf, HandshakeSesCtl, HandshakeSesVT, HandshakeSesPodUplink, HandshakeSesCLI)
		if err != nil {
			t.Fatalf("ReadHandshake: %v", err)
		}
		if got != h {
			t.Errorf("got %v want %v", got, h)
		}
	}
}

func TestHandshakeInvalidByteCloses(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xff})
	_, err := ReadHandshake(buf, HandshakeSesCtl)
	if err == nil {
		t.Fatal("expected error for unknown handshake byte")
	}
}

func TestControlMessageRoundTrip(t *testing.T) {
	id := uuid.New()
	msg := RegisterMsg{SessionID: id, Keepalive: true, Name: "pikachu"}

	var buf bytes.Buffer
	if err := WriteMessage(&buf, MsgRegister, msg.Encode()); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.Type != MsgRegister {
		t.Fatalf("type = %v, want MsgRegister", got.Type)
	}
	decoded, err := DecodeRegisterMsg(got.Payload)
	if err != nil {
		t.Fatalf("DecodeRegisterMsg: %v", err)
	}
	if decoded.SessionID != id || decoded.Keepalive != true || decoded.Name != "pikachu" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestMalformedPayloadShortRead(t *testing.T) {
	_, err := DecodeRegisterMsg([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected malformed error on short payload")
	}
}

func TestPayloadTooLargeRejected(t *testing.T) {
	var buf bytes.Buffer
	h := Header{MsgType: MsgSendKeys, PayloadLen: MaxPayload + 1}
	b := h.encode()
	buf.Write(b[:])
	_, err := ReadHeader(&buf)
	if err != ErrPayloadTooLarge {
		t.Fatalf("got %v want ErrPayloadTooLarge", err)
	}
}

func TestConnReadWriteOverPipe(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := NewConn(server)
	cc := NewConn(client)

	go func() {
		_ = cc.WriteMessage(MsgOk, nil)
	}()

	msg, err := sc.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.Type != MsgOk {
		t.Errorf("type = %v, want MsgOk", msg.Type)
	}
}

func TestConnCloseCancelsRead(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	sc := NewConn(server)
	errCh := make(chan error, 1)
	go func() {
		_, err := sc.ReadMessage()
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	server.Close()

	select {
	case err := <-errCh:
		if err != ErrIoClosed {
			t.Errorf("got %v want ErrIoClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ReadMessage did not unblock on Close")
	}
}

func TestSessionsListRoundTrip(t *testing.T) {
	msg := SessionsListMsg{Sessions: []SessionSummary{
		{SessionID: uuid.New(), SessionName: "bulbasaur", PaneCount: 3},
		{SessionID: uuid.New(), SessionName: "charmander", PaneCount: 1},
	}}
	decoded, err := DecodeSessionsListMsg(msg.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Sessions) != 2 || decoded.Sessions[0].SessionName != "bulbasaur" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestPaneInfoRoundTrip(t *testing.T) {
	p := PaneInfoMsg{
		Uuid:    uuid.New(),
		PodPid:  123,
		State:   PaneSticky,
		Name:    "main",
		Cwd:     "/tmp",
		FgName:  "vim",
		CursorX: 10, CursorY: 20,
	}
	decoded, err := DecodePaneInfoMsg(p.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Uuid != p.Uuid || decoded.State != PaneSticky || decoded.Cwd != "/tmp" {
		t.Errorf("decoded = %+v", decoded)
	}
}
