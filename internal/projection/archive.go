package projection

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/standproj/internal/blob"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

// ProjectionFiles are the engine outputs archived per stratum.
var ProjectionFiles = []string{
	"vp_grow.dat", "vs_grow.dat", "vu_grow.dat", "vc_grow.dat",
	"vp_back_grow.dat", "vs_back_grow.dat", "vu_back_grow.dat",
}

// CollectProjectionFiles uploads every projection file under root to store
// as "<projectionID>/<polygon>/<stratum>/<file>". It returns the number of
// files stored; a failed upload does not stop the others.
func CollectProjectionFiles(ctx context.Context, store blob.Store, projectionID, root string) (int, error) {
	polygons, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("read execution folder: %w", err)
	}
	var (
		n    int
		errs []error
	)
	for _, pd := range polygons {
		if !pd.IsDir() {
			continue
		}
		for _, s := range types.ProjectedStrata {
			dir := filepath.Join(root, pd.Name(), s.String())
			for _, name := range ProjectionFiles {
				ok, err := archiveFile(ctx, store, filepath.Join(dir, name), blob.Key(projectionID, pd.Name(), s.String(), name))
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if ok {
					n++
				}
			}
		}
	}
	return n, errors.Join(errs...)
}

func archiveFile(ctx context.Context, store blob.Store, path, key string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()
	if _, err := store.Put(ctx, key, f, blob.PutOptions{ContentType: "text/plain"}); err != nil {
		return false, fmt.Errorf("archive %s: %w", key, err)
	}
	return true, nil
}
