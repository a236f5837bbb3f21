//go:build fuse

package main

import (
	"github.com/sirupsen/logrus"

	"github.com/pascalmouret/jfs/journeyfs"
	"github.com/pascalmouret/jfs/vfs"
)

func mountFUSE(mountPoint string, fs *journeyfs.JourneyFS, debug bool) {
	server, err := vfs.Mount(mountPoint, fs, debug)
	if err != nil {
		logrus.WithError(err).Fatal("failed to mount FUSE filesystem")
	}
	logrus.WithField("mount", mountPoint).Info("serving filesystem, press Ctrl+C to unmount")
	server.Wait()
}
