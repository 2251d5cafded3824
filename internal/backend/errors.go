package backend

import "github.com/shimomut/tfm/internal/tfmerr"

func unsupportedScheme(scheme string) error {
	return tfmerr.New(tfmerr.KindUnsupported, "resolve-backend", scheme, nil)
}
