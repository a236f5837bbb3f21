//go:build !fuse

package main

import (
	"github.com/sirupsen/logrus"

	"github.com/pascalmouret/jfs/journeyfs"
)

func mountFUSE(mountPoint string, fs *journeyfs.JourneyFS, debug bool) {
	logrus.WithField("mount", mountPoint).Fatal("this binary was built without FUSE support (build with -tags fuse)")
}
