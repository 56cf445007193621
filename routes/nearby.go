package routes

import (
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"ediens-server/models"
	"ediens-server/services"
	"ediens-server/storage"

	"github.com/kataras/iris/v12"
)

type nearbyPost struct {
	Post     *models.FoodPost `json:"post"`
	Distance int              `json:"distance_m"`
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0
	la1 := lat1 * math.Pi / 180.0
	la2 := lat2 * math.Pi / 180.0
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(la1)*math.Cos(la2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// GetNearbyFoodPosts returns active posts within a radius of the caller's
// location, closest first. Coarse filtering happens in SQL over a bounding
// box; the exact circle cut uses haversine in memory.
func GetNearbyFoodPosts(ctx iris.Context) {
	lat, _ := strconv.ParseFloat(ctx.URLParam("lat"), 64)
	lng, _ := strconv.ParseFloat(ctx.URLParam("lng"), 64)
	if lat == 0 && lng == 0 {
		ctx.StatusCode(http.StatusBadRequest)
		ctx.JSON(iris.Map{"error": "lat and lng are required"})
		return
	}
	radius := 3000.0
	if v := ctx.URLParam("radius"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			radius = float64(n)
		}
	}

	// One degree of latitude is ~111km; stretch longitude by the cosine
	latDelta := radius / 111000.0
	lngDelta := latDelta / math.Cos(lat*math.Pi/180.0)

	var posts []models.FoodPost
	result := storage.DB.Preload("Owner").
		Where("lat BETWEEN ? AND ? AND lng BETWEEN ? AND ? AND status IN (?) AND expires_at > ?",
			lat-latDelta, lat+latDelta, lng-lngDelta, lng+lngDelta,
			[]string{models.PostStatusAvailable, models.PostStatusReserved}, time.Now()).
		Find(&posts)
	if result.Error != nil {
		ctx.StatusCode(iris.StatusInternalServerError)
		ctx.JSON(iris.Map{"error": "Failed to query nearby posts"})
		return
	}

	services.RefreshUrgencyAll(storage.DB, posts)

	items := make([]nearbyPost, 0, len(posts))
	for i := range posts {
		d := haversine(lat, lng, float64(posts[i].Lat), float64(posts[i].Lng))
		if d > radius {
			continue
		}
		items = append(items, nearbyPost{Post: &posts[i], Distance: int(d)})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Distance < items[j].Distance })
	if len(items) > 50 {
		items = items[:50]
	}

	ctx.JSON(iris.Map{"posts": items})
}
