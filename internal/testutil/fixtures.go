// Package testutil builds CT-e documents and archives for tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	TaxIDCacau     = "33.163.908/0105-61"
	TaxIDChocolate = "33.163.908/0085-83"
)

// Doc describes a synthetic CT-e document.
type Doc struct {
	CTNumber string
	Region   string
	TaxID    string

	// PO is written into ObsCont/xTexto when non-empty.
	PO string
}

// CTe renders d as a cteProc document.
func CTe(d Doc) string {
	obs := ""
	if d.PO != "" {
		obs = fmt.Sprintf(`
      <compl>
        <ObsCont xCampo="PEDIDO"><xTexto>PEDIDO %s</xTexto></ObsCont>
        <xObs>Pedido de compra %s</xObs>
      </compl>`, d.PO, d.PO)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<cteProc xmlns="http://www.portalfiscal.inf.br/cte" versao="4.00">
  <CTe xmlns="http://www.portalfiscal.inf.br/cte">
    <infCte Id="CTe35240100000000000000570010000012341000012345" versao="4.00">
      <ide>
        <cUF>35</cUF>
        <nCT>%s</nCT>
        <UFEnv>%s</UFEnv>
      </ide>%s
      <rem>
        <CNPJ>%s</CNPJ>
        <xNome>REMETENTE LTDA</xNome>
      </rem>
    </infCte>
  </CTe>
  <protCTe versao="4.00"/>
</cteProc>
`, d.CTNumber, d.Region, obs, d.TaxID)
}

// WriteFile writes content under dir and returns the full path.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

// Member is one entry of a test archive. A name ending in "/" is a
// directory entry.
type Member struct {
	Name    string
	Content []byte
}

// Zip builds an archive in memory with the given members in order.
func Zip(t *testing.T, members ...Member) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	modified := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	for _, m := range members {
		hdr := &zip.FileHeader{Name: m.Name, Method: zip.Deflate, Modified: modified}
		if len(m.Name) > 0 && m.Name[len(m.Name)-1] == '/' {
			hdr.Method = zip.Store
		}
		fw, err := w.CreateHeader(hdr)
		require.NoError(t, err)
		if len(m.Content) > 0 {
			_, err = fw.Write(m.Content)
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// ReadZip returns the members of the archive at path, keyed by name, and
// their order.
func ReadZip(t *testing.T, path string) (map[string][]byte, []string) {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	contents := make(map[string][]byte)
	var order []string
	for _, f := range r.File {
		order = append(order, f.Name)
		if f.FileInfo().IsDir() {
			contents[f.Name] = nil
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		var b bytes.Buffer
		_, err = b.ReadFrom(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		contents[f.Name] = b.Bytes()
	}
	return contents, order
}
