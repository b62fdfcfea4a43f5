// Package elfx provides helpers for opening ELF32 binaries and extracting
// their executable section so the parser can treat a compiled binary the
// same way it treats a raw hex dump.
package elfx

import (
	"debug/elf"
	"fmt"
)

// Section describes a loaded section's virtual address and size.
type Section struct {
	Name string
	VA   uint64
	Size uint64
}

// Image is an opened ELF32 binary with its code section located.
type Image struct {
	Path string
	Text Section
	file *elf.File
}

// Open parses the ELF header at path and locates its executable section.
// It rejects 64-bit images: the signature generator decodes 32-bit x86
// encodings only (spec Non-goals).
func Open(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfx: open %s: %w", path, err)
	}

	if f.Class != elf.ELFCLASS32 {
		f.Close()
		return nil, fmt.Errorf("elfx: %s is not a 32-bit ELF image", path)
	}
	if f.Machine != elf.EM_386 {
		f.Close()
		return nil, fmt.Errorf("elfx: %s is not an x86 image (machine=%s)", path, f.Machine)
	}

	im := &Image{Path: path, file: f}

	if sec := f.Section(".text"); sec != nil {
		im.Text = Section{Name: sec.Name, VA: sec.Addr, Size: sec.Size}
	} else {
		for _, p := range f.Progs {
			if p.Type == elf.PT_LOAD && p.Flags&elf.PF_X != 0 && p.Filesz > 0 {
				im.Text = Section{Name: "LOAD(exec)", VA: p.Vaddr, Size: p.Filesz}
				break
			}
		}
	}

	if im.Text.Size == 0 {
		f.Close()
		return nil, fmt.Errorf("elfx: %s has no executable section", path)
	}

	return im, nil
}

// Close releases the underlying file handle.
func (im *Image) Close() error {
	if im.file == nil {
		return nil
	}
	err := im.file.Close()
	im.file = nil
	return err
}

// TextBytes returns the raw bytes of the executable section, ready to be
// hex-encoded and fed to the parser's "hex" format.
func (im *Image) TextBytes() ([]byte, error) {
	sec := im.file.Section(im.Text.Name)
	if sec == nil {
		// Fall back to the PT_LOAD-derived section: read via ReadAt against
		// the file's full data.
		data, err := im.readLoadSegment()
		if err != nil {
			return nil, fmt.Errorf("elfx: read text: %w", err)
		}
		return data, nil
	}
	data, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("elfx: read .text: %w", err)
	}
	return data, nil
}

func (im *Image) readLoadSegment() ([]byte, error) {
	for _, p := range im.file.Progs {
		if p.Type == elf.PT_LOAD && p.Vaddr == im.Text.VA {
			buf := make([]byte, p.Filesz)
			if _, err := p.ReadAt(buf, 0); err != nil {
				return nil, err
			}
			return buf, nil
		}
	}
	return nil, fmt.Errorf("no PT_LOAD segment at 0x%08x", im.Text.VA)
}
