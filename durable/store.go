// Package durable implements crash-safe persistence of a single logical
// object under an (directory, object_id) handle, in the style of the
// write-ahead record format used throughout the Paxos literature: two
// alternating files, each holding a self-checksummed record, so that a
// crash mid-write never destroys the previous, still-valid commit.
package durable

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	"github.com/go-paxos/paxoslib/perrors"
)

const headerSize = 32 // 16 (md5) + 8 (serial) + 8 (length)

// Store persists a single gob-encoded value under two alternating
// files, `<id>_a.durable` and `<id>_b.durable`, inside directory.
type Store struct {
	dir      string
	objectID string

	serial  uint64
	nextIdx int // 0 -> "_a.durable" is the next write target, 1 -> "_b.durable"
}

type record struct {
	serial  uint64
	payload []byte
	ok      bool
}

func pathFor(dir, objectID string, idx int) string {
	suffix := "_a.durable"
	if idx == 1 {
		suffix = "_b.durable"
	}
	return filepath.Join(dir, objectID+suffix)
}

// Open recovers a Store from directory/objectID, decoding a prior
// commit (if any) into dest via gob. dest must be a pointer. recovered
// reports whether a prior record was found; if false, dest is left
// untouched and the store starts fresh at serial 1.
//
// Returns perrors.ErrUnrecoverableFailure if neither backing file is
// readable and at least one is non-empty — i.e. both appear corrupted
// rather than simply absent.
func Open(dir, objectID string, dest interface{}) (store *Store, recovered bool, err error) {
	recA := readRecord(pathFor(dir, objectID, 0))
	recB := readRecord(pathFor(dir, objectID, 1))

	switch {
	case recA.ok && recB.ok:
		if recA.serial >= recB.serial {
			return finishOpen(dir, objectID, recA, 1, dest)
		}
		return finishOpen(dir, objectID, recB, 0, dest)

	case recA.ok:
		return finishOpen(dir, objectID, recA, 1, dest)

	case recB.ok:
		return finishOpen(dir, objectID, recB, 0, dest)

	default:
		emptyA, errA := isEmptyOrAbsent(pathFor(dir, objectID, 0))
		emptyB, errB := isEmptyOrAbsent(pathFor(dir, objectID, 1))
		if errA != nil {
			return nil, false, errA
		}
		if errB != nil {
			return nil, false, errB
		}
		if emptyA && emptyB {
			return &Store{dir: dir, objectID: objectID, serial: 1, nextIdx: 0}, false, nil
		}
		return nil, false, fmt.Errorf("durable: object %q in %q: %w", objectID, dir, perrors.ErrUnrecoverableFailure)
	}
}

func finishOpen(dir, objectID string, rec record, nextIdx int, dest interface{}) (*Store, bool, error) {
	if len(rec.payload) > 0 {
		dec := gob.NewDecoder(bytes.NewReader(rec.payload))
		if err := dec.Decode(dest); err != nil {
			return nil, false, fmt.Errorf("durable: decoding object %q: %w", objectID, err)
		}
	}
	return &Store{dir: dir, objectID: objectID, serial: rec.serial + 1, nextIdx: nextIdx}, true, nil
}

func isEmptyOrAbsent(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("durable: stat %q: %w", path, err)
	}
	return info.Size() == 0, nil
}

// readRecord reads and validates a single record file, returning
// ok=false (with no error) for a missing file, a truncated file, or a
// record whose MD5 does not cover its own body. Log-and-continue is the
// correct response here: a single bad file is expected in normal
// operation (the not-yet-written alternate), not an application error.
func readRecord(path string) record {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return record{}
	}
	if len(data) < headerSize {
		log.Printf("[STORE] %s: truncated record (%d bytes)", path, len(data))
		return record{}
	}

	serial := binary.BigEndian.Uint64(data[16:24])
	length := binary.BigEndian.Uint64(data[24:32])
	if uint64(len(data)-headerSize) < length {
		log.Printf("[STORE] %s: truncated payload", path)
		return record{}
	}

	// The body is the serial, length and payload only: a file that once
	// held a longer record keeps stale bytes past the end of a newer one.
	end := headerSize + int(length)
	wantSum := data[0:16]
	gotSum := md5.Sum(data[16:end])
	if !bytes.Equal(wantSum, gotSum[:]) {
		log.Printf("[STORE] %s: %v", path, perrors.ErrFileCorrupted)
		return record{}
	}

	return record{serial: serial, payload: data[headerSize:end], ok: true}
}

// Save gob-encodes obj and commits it to the next alternating file,
// fsyncing before returning so that the record is guaranteed durable
// the instant Save returns without error. The in-memory serial and
// next-write target only advance after a successful sync.
func (s *Store) Save(obj interface{}) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(obj); err != nil {
		return fmt.Errorf("durable: encoding object %q: %w", s.objectID, err)
	}
	payload := buf.Bytes()

	rec := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint64(rec[16:24], s.serial)
	binary.BigEndian.PutUint64(rec[24:32], uint64(len(payload)))
	copy(rec[32:], payload)
	sum := md5.Sum(rec[16:])
	copy(rec[0:16], sum[:])

	path := pathFor(s.dir, s.objectID, s.nextIdx)
	_, statErr := os.Stat(path)
	creating := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("durable: %w: open %q: %v", perrors.ErrDurabilityFailure, path, err)
	}
	defer f.Close()

	if _, err := f.WriteAt(rec, 0); err != nil {
		return fmt.Errorf("durable: %w: write %q: %v", perrors.ErrDurabilityFailure, path, err)
	}
	if err := syncFile(f); err != nil {
		return fmt.Errorf("durable: %w: sync %q: %v", perrors.ErrDurabilityFailure, path, err)
	}

	if creating {
		if err := syncDir(s.dir); err != nil {
			return fmt.Errorf("durable: %w: sync dir %q: %v", perrors.ErrDurabilityFailure, s.dir, err)
		}
	}

	s.serial++
	s.nextIdx = 1 - s.nextIdx
	return nil
}

// syncDir fsyncs the directory entry itself, required the first time
// either backing file is created: without it, a crash can drop the
// just-created directory entry even though the file's own contents were
// already synced, leaving Open with nothing to recover.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// syncFile forces the written bytes to stable media. The stdlib only
// exposes a full file-sync (*os.File.Sync); a data-sync primitive would
// be preferred where available but isn't part of the portable surface
// used here.
func syncFile(f *os.File) error {
	return f.Sync()
}
