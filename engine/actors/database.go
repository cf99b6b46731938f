package actors

import (
	"bytes"
	"io"
	"os"

	"keyholder/engine/library"
)

// Open returns the flat file <bucket>/<name>.dat under the data directory, or
// false if it does not exist yet.
func Open(bucket, name string) (*os.File, bool) {
	if err := os.MkdirAll(directory(bucket), 0700); err != nil {
		library.LogCLI(err.Error(), 0)
	}
	_, err := os.Stat(directory(bucket) + name + ".dat")
	if os.IsNotExist(err) {
		return nil, false
	}
	file, err := os.Open(directory(bucket) + name + ".dat")
	if err != nil {
		library.LogCLI(err.Error(), 1)
		return nil, false
	}
	return file, true
}

// Write replaces the flat file <bucket>/<name>.dat with b.
func Write(bucket, name string, b []byte) error {
	if err := os.MkdirAll(directory(bucket), 0700); err != nil {
		return err
	}
	tmp := directory(bucket) + name + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err = io.Copy(f, bytes.NewReader(b)); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, directory(bucket)+name+".dat")
}

func directory(bucket string) string {
	dir := MakeOrGetConfig().GetString("rootDir")
	dir = dir + MakeOrGetConfig().GetString("flatFileDir")
	dir = dir + bucket + "/"
	return dir
}
