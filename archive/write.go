package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/regdelta/layout"
	"github.com/meigma/regdelta/registry"
)

// Pack assembles a delta archive at path for the target image.
//
// m is the target's manifest. blobs maps each delta blob digest to a file
// holding its content; content is trusted to be digest-verified already
// (readers re-verify on open). Link entries are emitted for every
// descriptor in m so the destination repository becomes self-contained;
// data entries only for the delta and the manifest document itself.
//
// The archive is written to a temp file and renamed into place, and its
// entries carry fixed metadata in sorted order, so packing the same input
// twice yields byte-identical output.
func Pack(path string, ref registry.Reference, m *registry.Manifest, blobs map[digest.Digest]string) error {
	type entry struct {
		size int64
		src  string
		data []byte
	}
	entries := make(map[string]entry)
	addData := func(name string, data []byte) {
		entries[name] = entry{size: int64(len(data)), data: data}
	}

	addData(layout.VersionMarker, []byte(ref.Tag+"\n"))

	// Repository metadata: the tag, its manifest revision, and a layer
	// link per referenced blob.
	mdgst := m.Digest
	addData(layout.ManifestRevisionLinkPath(ref.Repository, mdgst), []byte(mdgst.String()))
	addData(layout.TagIndexLinkPath(ref.Repository, ref.Tag, mdgst), []byte(mdgst.String()))
	addData(layout.TagCurrentLinkPath(ref.Repository, ref.Tag), []byte(mdgst.String()))
	for _, desc := range m.Descriptors() {
		addData(layout.LayerLinkPath(ref.Repository, desc.Digest), []byte(desc.Digest.String()))
	}

	// The manifest document is itself a blob.
	addData(layout.BlobDataPath(mdgst), m.Raw)

	for dgst, file := range blobs {
		if !m.References(dgst) {
			return fmt.Errorf("archive: blob %s is not referenced by the manifest", dgst)
		}
		info, err := os.Stat(file)
		if err != nil {
			return fmt.Errorf("archive: stat blob %s: %w", dgst, err)
		}
		entries[layout.BlobDataPath(dgst)] = entry{size: info.Size(), src: file}
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	tmpPath := path + ".part"
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer func() {
		if f != nil {
			f.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for _, name := range names {
		e := entries[name]
		hdr := &tar.Header{
			Name:    name,
			Mode:    0o644,
			Size:    e.size,
			ModTime: time.Unix(0, 0),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("archive: write header %s: %w", name, err)
		}
		if e.src != "" {
			if err := copyFile(tw, e.src, e.size); err != nil {
				return fmt.Errorf("archive: write %s: %w", name, err)
			}
			continue
		}
		if _, err := tw.Write(e.data); err != nil {
			return fmt.Errorf("archive: write %s: %w", name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	f = nil

	return os.Rename(tmpPath, path)
}

// copyFile streams exactly size bytes of src into w. A file that changed
// size since Stat corrupts the tar stream, so the length is enforced.
func copyFile(w io.Writer, src string, size int64) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := io.Copy(w, f)
	if err != nil {
		return err
	}
	if n != size {
		return fmt.Errorf("short copy: wrote %d of %d bytes", n, size)
	}
	return nil
}
