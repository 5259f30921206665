package version

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio"
	"go.uber.org/zap"
)

const (
	loggerNotConfiguredMessageConstant  = "version bumper logger not configured"
	lockFileNameTemplateConstant        = "devtools-bump-%s.lock"
	lockRetryDelayConstant              = 50 * time.Millisecond
	lockAcquireErrorTemplateConstant    = "unable to lock manifest %s: %w"
	lockNotAcquiredTemplateConstant     = "manifest %s is locked by another process"
	manifestPathResolveTemplateConstant = "unable to resolve manifest path %s: %w"
	manifestStatErrorTemplateConstant   = "unable to inspect manifest %s: %w"
	manifestWriteErrorTemplateConstant  = "unable to write manifest %s: %w"
	bumpStartedMessageConstant          = "bumping manifest version"
	bumpCompletedMessageConstant        = "manifest version bumped"
	bumpDryRunMessageConstant           = "manifest version bump previewed"
	bumpLineMissingMessageConstant      = "manifest version line not found verbatim; manifest left unchanged"
	lockReleaseFailedMessageConstant    = "failed to release manifest lock"
	logFieldManifestPathConstant        = "manifest_path"
	logFieldBumpKindConstant            = "bump_kind"
	logFieldPreviousVersionConstant     = "previous_version"
	logFieldCurrentVersionConstant      = "current_version"
	logFieldLockPathConstant            = "lock_path"
)

// ErrLoggerNotConfigured indicates that a Bumper was constructed without a logger.
var ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)

// BumpResult describes the outcome of a version bump.
type BumpResult struct {
	ManifestPath string
	Previous     Version
	Current      Version
	Rewritten    bool
	DryRun       bool
}

// BumpOptions configures a single bump.
type BumpOptions struct {
	ManifestPath string
	Kind         BumpKind
	DryRun       bool
}

// Bumper rewrites manifest versions while holding a cross-process lock.
type Bumper struct {
	logger        *zap.Logger
	lockDirectory string
}

// NewBumper constructs a Bumper that locks manifests through files in os.TempDir.
func NewBumper(logger *zap.Logger) (*Bumper, error) {
	return NewBumperWithLockDirectory(logger, defaultLockDirectory())
}

// NewBumperWithLockDirectory constructs a Bumper placing lock files in lockDirectory.
func NewBumperWithLockDirectory(logger *zap.Logger, lockDirectory string) (*Bumper, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	return &Bumper{logger: logger, lockDirectory: lockDirectory}, nil
}

func defaultLockDirectory() string {
	return os.TempDir()
}

// Bump increments the manifest version according to options.
func (bumper *Bumper) Bump(executionContext context.Context, options BumpOptions) (BumpResult, error) {
	absoluteManifestPath, resolveError := filepath.Abs(options.ManifestPath)
	if resolveError != nil {
		return BumpResult{}, fmt.Errorf(manifestPathResolveTemplateConstant, options.ManifestPath, resolveError)
	}

	manifestLock := flock.New(bumper.lockPath(absoluteManifestPath))
	locked, lockError := manifestLock.TryLockContext(executionContext, lockRetryDelayConstant)
	if lockError != nil {
		return BumpResult{}, fmt.Errorf(lockAcquireErrorTemplateConstant, options.ManifestPath, lockError)
	}
	if !locked {
		return BumpResult{}, fmt.Errorf(lockNotAcquiredTemplateConstant, options.ManifestPath)
	}
	defer func() {
		if unlockError := manifestLock.Unlock(); unlockError != nil {
			bumper.logger.Warn(lockReleaseFailedMessageConstant, zap.String(logFieldLockPathConstant, manifestLock.Path()), zap.Error(unlockError))
		}
	}()

	return bumper.bumpLocked(options)
}

func (bumper *Bumper) bumpLocked(options BumpOptions) (BumpResult, error) {
	kind := ParseBumpKind(string(options.Kind))

	bumper.logger.Debug(
		bumpStartedMessageConstant,
		zap.String(logFieldManifestPathConstant, options.ManifestPath),
		zap.String(logFieldBumpKindConstant, string(kind)),
	)

	manifest, readError := ReadManifest(options.ManifestPath)
	if readError != nil {
		return BumpResult{}, readError
	}

	nextVersion := manifest.Version.Bump(kind)
	result := BumpResult{
		ManifestPath: options.ManifestPath,
		Previous:     manifest.Version,
		Current:      nextVersion,
		DryRun:       options.DryRun,
	}

	rewrittenContent, replaced := manifest.Rewrite(nextVersion)
	if !replaced {
		bumper.logger.Warn(
			bumpLineMissingMessageConstant,
			zap.String(logFieldManifestPathConstant, options.ManifestPath),
			zap.String(logFieldPreviousVersionConstant, manifest.Version.String()),
		)
		return result, nil
	}

	if options.DryRun {
		bumper.logTransition(bumpDryRunMessageConstant, result)
		return result, nil
	}

	manifestInfo, statError := os.Stat(options.ManifestPath)
	if statError != nil {
		return BumpResult{}, fmt.Errorf(manifestStatErrorTemplateConstant, options.ManifestPath, statError)
	}

	if writeError := renameio.WriteFile(options.ManifestPath, []byte(rewrittenContent), manifestInfo.Mode().Perm()); writeError != nil {
		return BumpResult{}, fmt.Errorf(manifestWriteErrorTemplateConstant, options.ManifestPath, writeError)
	}

	result.Rewritten = true
	bumper.logTransition(bumpCompletedMessageConstant, result)

	return result, nil
}

func (bumper *Bumper) logTransition(message string, result BumpResult) {
	bumper.logger.Info(
		message,
		zap.String(logFieldManifestPathConstant, result.ManifestPath),
		zap.String(logFieldPreviousVersionConstant, result.Previous.String()),
		zap.String(logFieldCurrentVersionConstant, result.Current.String()),
	)
}

func (bumper *Bumper) lockPath(absoluteManifestPath string) string {
	pathDigest := sha256.Sum256([]byte(absoluteManifestPath))
	return filepath.Join(bumper.lockDirectory, fmt.Sprintf(lockFileNameTemplateConstant, hex.EncodeToString(pathDigest[:8])))
}
