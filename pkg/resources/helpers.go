package resources

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/openfroyo/qlikcloud/pkg/engine"
	"github.com/openfroyo/qlikcloud/pkg/tenant"
)

// resolveSpaceID returns the id of the named space. An empty name resolves
// to the personal space (""). A missing space is fatal.
func resolveSpaceID(ctx context.Context, c *tenant.Client, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	space, err := c.FindSpace(ctx, name)
	if err != nil {
		return "", engine.NewTransportError(engine.OperationRead, "space", err)
	}
	if space == nil {
		return "", engine.NewNotFoundError(fmt.Sprintf("space %q not found", name)).WithResource("space")
	}
	id, _ := space["id"].(string)
	return id, nil
}

// findBy returns the first object whose attribute equals value.
func findBy(objects []tenant.Object, attr, value string) tenant.Object {
	for _, o := range objects {
		if v, ok := o[attr].(string); ok && v == value {
			return o
		}
	}
	return nil
}

// getOrEmpty fetches by id, treating a 404 as "does not exist".
func getOrEmpty(ctx context.Context, col *tenant.Collection, id string) (engine.State, error) {
	obj, err := col.Get(ctx, id)
	if tenant.IsNotFound(err) {
		return engine.State{}, nil
	}
	return obj, err
}

// merged returns existing overlaid with desired, for APIs whose update is a
// full replacement.
func merged(existing, desired engine.State) engine.State {
	out := existing.Clone()
	if out == nil {
		out = engine.State{}
	}
	for k, v := range desired {
		out[k] = v
	}
	return out
}

// without returns a copy of s without the given keys.
func without(s engine.State, keys ...string) engine.State {
	out := s.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// fileMD5 returns the hex MD5 digest of a file.
func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", engine.NewValidationError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// checkFile fails early when a file parameter does not point to a readable
// regular file.
func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return engine.NewValidationError(fmt.Sprintf("file %s is not accessible", path), err)
	}
	if info.IsDir() {
		return engine.NewValidationError(fmt.Sprintf("file %s is a directory", path), nil)
	}
	return nil
}
