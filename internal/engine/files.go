package engine

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/sh"

	"github.com/mesh-intelligence/standproj/pkg/types"
)

// Engine input and output file names, relative to the stratum folder.
const (
	fipPolygonFile = "fip_p01.dat"
	fipLayerFile   = "fip_l01.dat"
	fipSpeciesFile = "fip_ls01.dat"

	vriPolygonFile   = "vrinp01.dat"
	vriLayerFile     = "vrinl01.dat"
	vriSpeciesFile   = "vrinsp01.dat"
	vriSiteIndexFile = "vrinsi01.dat"

	growToYearFile = "vin_y1.dat"
)

// adjustFiles maps each Initial output to the Adjust output Forward reads.
var adjustFiles = [][2]string{
	{"vp_01.dat", "vp_adj.dat"},
	{"vs_01.dat", "vs_adj.dat"},
	{"vu_01.dat", "vu_adj.dat"},
}

// descriptor renders the polygon key that starts every record.
func descriptor(p types.PolygonView) string {
	d := p.Descriptor()
	mapSheet := d.MapSheet
	if mapSheet == "" {
		mapSheet = "-"
	}
	return fmt.Sprintf("%-9s %9d %-4s %4d", mapSheet, d.PolygonNumber, orDash(d.District), p.ReferenceYear())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// record writes lines to path, replacing any previous content.
func record(dir, name string, write func(w *bufio.Writer)) error {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	write(w)
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}

func writeFIPInput(dir string, p types.PolygonView, layer *types.Layer) error {
	desc := descriptor(p)
	if err := record(dir, fipPolygonFile, func(w *bufio.Writer) {
		fmt.Fprintf(w, "%s %-12s %-3s\n", desc, orDash(string(p.InventoryStandard())), nonProductive(p))
	}); err != nil {
		return err
	}
	if err := record(dir, fipLayerFile, func(w *bufio.Writer) {
		writeLayer(w, desc, layer)
		fmt.Fprintln(w)
	}); err != nil {
		return err
	}
	return record(dir, fipSpeciesFile, func(w *bufio.Writer) {
		writeSpecies(w, desc, layer, false)
		fmt.Fprintln(w)
	})
}

func writeVRIInput(dir string, p types.PolygonView, layer *types.Layer, mode types.ProcessingMode) error {
	desc := descriptor(p)
	if err := record(dir, vriPolygonFile, func(w *bufio.Writer) {
		fmt.Fprintf(w, "%s %-12s %-3s %s\n", desc, orDash(string(p.InventoryStandard())), nonProductive(p), mode)
	}); err != nil {
		return err
	}
	if err := record(dir, vriLayerFile, func(w *bufio.Writer) {
		writeLayer(w, desc, layer)
		fmt.Fprintln(w)
	}); err != nil {
		return err
	}
	if err := record(dir, vriSpeciesFile, func(w *bufio.Writer) {
		writeSpecies(w, desc, layer, false)
		fmt.Fprintln(w)
	}); err != nil {
		return err
	}
	return record(dir, vriSiteIndexFile, func(w *bufio.Writer) {
		writeSpecies(w, desc, layer, true)
		fmt.Fprintln(w)
	})
}

func nonProductive(p types.PolygonView) string {
	if p.IsNonProductive() {
		return "NP"
	}
	return "-"
}

func writeLayer(w *bufio.Writer, desc string, l *types.Layer) {
	fmt.Fprintf(w, "%s %-12s %9.4f %9.2f %6.1f\n", desc, l.Stratum, l.BasalArea, l.TreesPerHectare, l.CrownClosure)
}

// writeSpecies writes the species composition, or the site records when
// site is true.
func writeSpecies(w *bufio.Writer, desc string, l *types.Layer, site bool) {
	for _, sp := range l.Species {
		if site {
			fmt.Fprintf(w, "%s %-12s %-3s %6.1f %6.2f %6.2f %5.1f\n",
				desc, l.Stratum, sp.Code, sp.TotalAge, sp.Height, sp.SiteIndex, sp.YearsToBreastHeight)
			continue
		}
		fmt.Fprintf(w, "%s %-12s %-3s %5.1f\n", desc, l.Stratum, sp.Code, sp.Percent)
	}
}

func writeGrowToYear(dir string, p types.PolygonView, targetYear int) error {
	return record(dir, growToYearFile, func(w *bufio.Writer) {
		fmt.Fprintf(w, "%s %4d\n", descriptor(p), targetYear)
	})
}

// copyAdjustFiles passes the Initial outputs through Adjust unchanged.
func copyAdjustFiles(dir string) error {
	for _, f := range adjustFiles {
		if err := sh.Copy(filepath.Join(dir, f[1]), filepath.Join(dir, f[0])); err != nil {
			return fmt.Errorf("adjust pass-through: %w", err)
		}
	}
	return nil
}
