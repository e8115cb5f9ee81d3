package parser

import (
	"fmt"
	"path/filepath"
)

// DatasetPaths locates the inputs of one run inside the results tree used by
// the decomposition jobs:
//
//	root/waves/{wave}.wave
//	root/basises/{basis}/
//	root/coeffs/case_statistics_{wave}_{basis}_{bath}_all.json
type DatasetPaths struct {
	Wave     string
	BasisDir string
	Coefs    string
}

func NewDatasetPaths(root, bath, basis, wave string) DatasetPaths {
	return DatasetPaths{
		Wave:     filepath.Join(root, "waves", wave+".wave"),
		BasisDir: filepath.Join(root, "basises", basis),
		Coefs:    filepath.Join(root, "coeffs", fmt.Sprintf("case_statistics_%s_%s_%s_all.json", wave, basis, bath)),
	}
}
