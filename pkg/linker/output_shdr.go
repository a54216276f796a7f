package linker

import (
	"github.com/hcyang1106/rvld/pkg/utils"
)

type OutputShdr struct {
	Chunk
}

func NewOutputShdr() *OutputShdr {
	o := &OutputShdr{Chunk: NewChunk()}
	o.Name = "shdr"
	o.Shdr.AddrAlign = 8
	return o
}

func (o *OutputShdr) Kind() ChunkKind {
	return ChunkKindHeader
}

// one entry per indexed chunk plus the null entry
func (o *OutputShdr) UpdateShdr(ctx *Context) {
	n := int64(0)
	for _, chunk := range ctx.Chunks {
		if chunk.GetShndx() > n {
			n = chunk.GetShndx()
		}
	}
	o.Shdr.Size = uint64(n+1) * uint64(ShdrSize)
}

func (o *OutputShdr) CopyBuf(ctx *Context) {
	base := ctx.Buf[o.Shdr.Offset:]
	utils.Write[Shdr](base, Shdr{})

	for _, chunk := range ctx.Chunks {
		if chunk.GetShndx() > 0 {
			utils.Write[Shdr](base[chunk.GetShndx()*int64(ShdrSize):], *chunk.GetShdr())
		}
	}
}
