// Package mtproto implements the encrypted message envelope: parsing and
// sealing of MTProto 2.0 messages, message id and seq_no validation, the
// server salt check, server message id generation, auth key storage and
// temporary key binding.
//
// Failures are reported with two error types. *BadMessage is recoverable:
// the gateway answers with bad_msg_notification or bad_server_salt and keeps
// the connection. *Disconnect is fatal: the gateway writes the transport
// error code and closes the connection.
package mtproto
