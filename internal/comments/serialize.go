package comments

import (
	"encoding/xml"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"

	"danmakuproxy/internal/domain"
)

const legacyXMLTimestamp = 1751533608

// JSONComment is one entry of the {count, comments:[...]} response body.
type JSONComment struct {
	CID int    `json:"cid"`
	P   string `json:"p"`
	M   string `json:"m"`
}

// JSONResponse is the full serialized JSON comment response.
type JSONResponse struct {
	Count    int           `json:"count"`
	Comments []JSONComment `json:"comments"`
}

// SerializeJSON implements spec/4.5 step 6 JSON form: p is
// "t,mode,color,[platform]", cid is a 1-based sequence.
func SerializeJSON(list []domain.Danmaku, platform string) JSONResponse {
	out := make([]JSONComment, len(list))
	for i, d := range list {
		p := fmt.Sprintf("%.2f,%d,%d,[%s]", d.T, d.Mode, d.Color, platform)
		out[i] = JSONComment{CID: i + 1, P: p, M: d.Text}
	}
	return JSONResponse{Count: len(out), Comments: out}
}

type xmlDoc struct {
	XMLName xml.Name  `xml:"i"`
	D       []xmlItem `xml:"d"`
}

type xmlItem struct {
	P    string `xml:"p,attr"`
	Text string `xml:",chardata"`
}

// SerializeXML implements spec/4.5 step 6 Bilibili-XML form: 8-field p
// with a fixed legacy timestamp, pool=0, userHash=0, and a pseudo-unique
// 11-digit did per comment.
func SerializeXML(list []domain.Danmaku, size int) ([]byte, error) {
	if size <= 0 {
		size = 25
	}
	doc := xmlDoc{D: make([]xmlItem, len(list))}
	for i, d := range list {
		did := pseudoUniqueID(d, i)
		p := fmt.Sprintf("%.2f,%d,%d,%d,%d,0,0,%s", d.T, d.Mode, size, d.Color, legacyXMLTimestamp, did)
		doc.D[i] = xmlItem{P: p, Text: d.Text}
	}
	return xml.MarshalIndent(doc, "", "")
}

// pseudoUniqueID derives an 11-digit id from a fresh uuid mixed with the
// comment's position, so repeated serialization of the same stream still
// yields distinct per-comment ids without a global counter.
func pseudoUniqueID(d domain.Danmaku, index int) string {
	h := fnv.New64a()
	h.Write([]byte(uuid.NewString()))
	fmt.Fprintf(h, "%d:%s", index, d.Text)
	n := h.Sum64() % 100000000000
	return fmt.Sprintf("%011d", n)
}
