package region

import (
	"fmt"

	"regioncache.ai/internal/mapcodec/terrain"
)

// Coord packs region grid coordinates as (x<<8)|y.
type Coord uint16

func NewCoord(x, y int) Coord {
	return Coord(uint16(x&0xff)<<8 | uint16(y&0xff))
}

func (c Coord) X() int { return int(c >> 8) }
func (c Coord) Y() int { return int(c & 0xff) }

// BaseTile is the world tile coordinate of the region's (0,0) tile.
func (c Coord) BaseTile() (x, y int) {
	return c.X() * terrain.Size, c.Y() * terrain.Size
}

func (c Coord) String() string {
	return fmt.Sprintf("%d_%d", c.X(), c.Y())
}

// CoordAt returns the region containing world tile (x, y) and the tile's
// local position inside it.
func CoordAt(worldX, worldY int) (c Coord, localX, localY int, ok bool) {
	if worldX < 0 || worldY < 0 {
		return 0, 0, 0, false
	}
	rx, ry := worldX/terrain.Size, worldY/terrain.Size
	if rx > 0xff || ry > 0xff {
		return 0, 0, 0, false
	}
	return NewCoord(rx, ry), worldX % terrain.Size, worldY % terrain.Size, true
}
