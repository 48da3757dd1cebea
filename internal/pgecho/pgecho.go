// Package pgecho speaks enough of the Postgres frontend/backend
// protocol to answer the postgres exchange: every extended-protocol
// query returns its first bound parameter as a single text column.
//
// There is no authentication and no SQL parsing.  Simple queries get an
// empty response, which is what clients send to check liveness.
package pgecho

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jackc/pgx/v5/pgproto3"
)

// textOID is the type OID of the returned column and the parameter.
const textOID = 25

// Handler serves one client connection.  The zero value echoes.
type Handler struct {
	// Reply maps the bound parameter to the returned value.  Nil
	// returns the parameter unchanged.
	Reply func(param []byte) []byte
}

func (h *Handler) reply(param []byte) []byte {
	if h.Reply == nil {
		return param
	}
	return h.Reply(param)
}

// Serve runs the protocol on conn until the client terminates or
// disconnects.  It does not close conn.
func (h *Handler) Serve(conn net.Conn) error {
	be := pgproto3.NewBackend(conn, conn)
	if err := startup(conn, be); err != nil {
		return err
	}

	var (
		param   []byte
		formats []int16
	)
	for {
		msg, err := be.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}

		switch msg := msg.(type) {
		case *pgproto3.Parse:
			be.Send(&pgproto3.ParseComplete{})
		case *pgproto3.Describe:
			if msg.ObjectType == 'S' {
				be.Send(&pgproto3.ParameterDescription{ParameterOIDs: []uint32{textOID}})
				be.Send(rowDescription(0))
			} else {
				be.Send(rowDescription(resultFormat(formats)))
			}
		case *pgproto3.Bind:
			param, formats = nil, append(formats[:0], msg.ResultFormatCodes...)
			if len(msg.Parameters) > 0 {
				param = bytes.Clone(msg.Parameters[0])
			}
			be.Send(&pgproto3.BindComplete{})
		case *pgproto3.Execute:
			be.Send(&pgproto3.DataRow{Values: [][]byte{h.reply(param)}})
			be.Send(&pgproto3.CommandComplete{CommandTag: []byte("SELECT 1")})
		case *pgproto3.Close:
			be.Send(&pgproto3.CloseComplete{})
		case *pgproto3.Sync:
			be.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
		case *pgproto3.Query:
			be.Send(&pgproto3.EmptyQueryResponse{})
			be.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
		case *pgproto3.Flush:
		case *pgproto3.Terminate:
			return nil
		default:
			return fmt.Errorf("pgecho: unexpected %T", msg)
		}

		if err := be.Flush(); err != nil {
			return err
		}
	}
}

// startup declines TLS and accepts any user without a password.
func startup(conn net.Conn, be *pgproto3.Backend) error {
	for {
		msg, err := be.ReceiveStartupMessage()
		if err != nil {
			return err
		}
		switch msg.(type) {
		case *pgproto3.SSLRequest, *pgproto3.GSSEncRequest:
			if _, err := conn.Write([]byte{'N'}); err != nil {
				return err
			}
		case *pgproto3.StartupMessage:
			be.Send(&pgproto3.AuthenticationOk{})
			be.Send(&pgproto3.ParameterStatus{Name: "server_version", Value: "16.0"})
			be.Send(&pgproto3.ParameterStatus{Name: "client_encoding", Value: "UTF8"})
			be.Send(&pgproto3.ParameterStatus{Name: "standard_conforming_strings", Value: "on"})
			be.Send(&pgproto3.BackendKeyData{ProcessID: 1, SecretKey: 1})
			be.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
			return be.Flush()
		default:
			return fmt.Errorf("pgecho: unexpected startup %T", msg)
		}
	}
}

func rowDescription(format int16) *pgproto3.RowDescription {
	return &pgproto3.RowDescription{Fields: []pgproto3.FieldDescription{{
		Name:         []byte("text"),
		DataTypeOID:  textOID,
		DataTypeSize: -1,
		TypeModifier: -1,
		Format:       format,
	}}}
}

// resultFormat returns the format a Bind requested for the one column.
func resultFormat(codes []int16) int16 {
	if len(codes) == 0 {
		return 0
	}
	return codes[0]
}
