// Package nativemsg implements the browser native-messaging framing: every
// message is a 4-byte little-endian length followed by that many bytes of
// UTF-8 JSON.
//
// Decoder is the incremental, transport-agnostic half. Reader pumps an
// io.Reader through a Decoder and Writer emits framed messages atomically.
package nativemsg
