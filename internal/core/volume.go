package core

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/arcafs/arca/internal/command"
	"github.com/arcafs/arca/internal/domain"
)

func (c *Core) handleVolumeUnmount(ctx context.Context, cmd command.Command) (any, error) {
	p, err := typedParams[*command.SysVolumeUnmountParams](cmd)
	if err != nil {
		return nil, err
	}
	vol, err := c.store.GetVolume(p.ID)
	if err != nil {
		return nil, err
	}
	if !vol.Mounted {
		return nil, fmt.Errorf("%w: volume %q", domain.ErrVolumeNotMounted, vol.Name)
	}
	vol.Mounted = false
	if err := c.store.SaveVolume(&vol); err != nil {
		return nil, err
	}
	c.logger.Info("volume unmounted", "id", vol.ID, "name", vol.Name)
	return vol, nil
}

// VolumeProbe enumerates the volumes visible to the host.
type VolumeProbe interface {
	Probe() ([]domain.Volume, error)
}

// StaticProbe returns a fixed volume list. Used in tests and as a
// fallback when the host offers no mount table.
type StaticProbe []domain.Volume

func (p StaticProbe) Probe() ([]domain.Volume, error) {
	out := make([]domain.Volume, len(p))
	copy(out, p)
	return out, nil
}

// MountTableProbe reads a Linux mount table and reports one volume per
// device-backed filesystem.
type MountTableProbe struct {
	// Path of the mount table, /proc/mounts when empty.
	Path string
}

func (p MountTableProbe) Probe() ([]domain.Volume, error) {
	path := p.Path
	if path == "" {
		path = "/proc/mounts"
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var vols []domain.Volume
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "/dev/") {
			continue
		}
		vols = append(vols, domain.Volume{
			Name:       fields[0],
			MountPoint: fields[1],
			Mounted:    true,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return vols, nil
}

// SeedVolumes reconciles the probe's view of the host with the stored
// volume list, matching on mount point. Known volumes keep their ids;
// a volume seen again after an unmount is marked mounted.
func SeedVolumes(store domain.Store, probe VolumeProbe, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	probed, err := probe.Probe()
	if err != nil {
		return err
	}
	known, err := store.ListVolumes()
	if err != nil {
		return err
	}
	byMount := make(map[string]domain.Volume, len(known))
	for _, v := range known {
		byMount[v.MountPoint] = v
	}
	for _, v := range probed {
		if existing, ok := byMount[v.MountPoint]; ok {
			existing.Name = v.Name
			existing.TotalBytes = v.TotalBytes
			existing.Mounted = true
			if err := store.SaveVolume(&existing); err != nil {
				return err
			}
			continue
		}
		vol := v
		if err := store.SaveVolume(&vol); err != nil {
			return err
		}
		logger.Debug("volume registered", "id", vol.ID, "mount", vol.MountPoint)
	}
	return nil
}
