// Command sidebandcat is a minimal byte-oriented demonstrator for the
// frame codec: -decode reads length-prefixed frames from stdin and prints
// them, and the default mode frames each line of stdin as a Message frame
// and writes the length-prefixed bytes to stdout. It has no network
// surface; piping sidebandcat | sidebandcat -decode round-trips.
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/sideband/internal/identity"
	"github.com/danmuck/sideband/internal/wireframe"
)

func main() {
	decode := flag.Bool("decode", false, "decode length-prefixed frames from stdin instead of encoding lines")
	subject := flag.String("subject", "app/stdin", "subject stamped on encoded message frames")
	flag.Parse()

	var err error
	if *decode {
		err = runDecode(os.Stdin, os.Stdout)
	} else {
		err = runEncode(os.Stdin, os.Stdout, *subject)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "sidebandcat:", err)
		os.Exit(1)
	}
}

func runEncode(in io.Reader, out io.Writer, subjectText string) error {
	subject, err := identity.ValidateSubject(subjectText)
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		id, err := identity.NewFrameID()
		if err != nil {
			return err
		}
		frame := wireframe.NewMessageFrame(id, subject, scanner.Bytes())
		encoded, err := wireframe.Encode(frame)
		if err != nil {
			return err
		}
		if err := writeDelimited(out, encoded); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func runDecode(in io.Reader, out io.Writer) error {
	for {
		encoded, err := readDelimited(in)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		frame, err := wireframe.Decode(encoded)
		if err != nil {
			return err
		}
		switch frame.Kind() {
		case wireframe.KindMessage:
			subject, _ := frame.Subject()
			fmt.Fprintf(out, "%s id=%s subject=%s data=%q\n", frame.Kind(), frame.ID().Hex(), subject.String(), frame.Data())
		case wireframe.KindAck:
			target, _ := frame.Target()
			fmt.Fprintf(out, "%s id=%s target=%s\n", frame.Kind(), frame.ID().Hex(), target.Hex())
		case wireframe.KindError:
			code, _ := frame.ErrorCode()
			msg, _ := frame.ErrorMessage()
			fmt.Fprintf(out, "%s id=%s code=%d message=%q\n", frame.Kind(), frame.ID().Hex(), code, msg)
		default:
			fmt.Fprintf(out, "%s id=%s\n", frame.Kind(), frame.ID().Hex())
		}
	}
}

func writeDelimited(w io.Writer, b []byte) error {
	prefix := make([]byte, 4)
	binary.LittleEndian.PutUint32(prefix, uint32(len(b)))
	if _, err := w.Write(prefix); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readDelimited(r io.Reader) ([]byte, error) {
	prefix := make([]byte, 4)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(prefix)
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
