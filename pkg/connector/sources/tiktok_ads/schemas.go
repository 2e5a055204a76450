package tiktokads

import (
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/singer"
)

// Field type shorthands
var (
	tInt      = func() *singer.Schema { return singer.Nullable("integer") }
	tNum      = func() *singer.Schema { return singer.Nullable("number") }
	tStr      = func() *singer.Schema { return singer.Nullable("string") }
	tBool     = func() *singer.Schema { return singer.Nullable("boolean") }
	tTime     = singer.NullableDateTime
	tStrList  = func() *singer.Schema { return singer.NullableArray(singer.Nullable("string")) }
	tIntList  = func() *singer.Schema { return singer.NullableArray(singer.Nullable("integer")) }
	tObj      = func() *singer.Schema { return singer.NullableObject(nil) }
	tNumOrStr = func() *singer.Schema { return singer.Nullable("number", "string") }
)

func objectSchema(props map[string]*singer.Schema) *singer.Schema {
	return &singer.Schema{Type: []interface{}{"null", "object"}, Properties: props}
}

func advertisersSchema() *singer.Schema {
	return objectSchema(map[string]*singer.Schema{
		"id":                      tInt(),
		"name":                    tStr(),
		"address":                 tStr(),
		"company":                 tStr(),
		"contacter":               tStr(),
		"country":                 tStr(),
		"currency":                tStr(),
		"description":             tStr(),
		"email":                   tStr(),
		"industry":                tStr(),
		"language":                tStr(),
		"license_no":              tStr(),
		"license_url":             tStr(),
		"cellphone_number":        tStr(),
		"telephone_number":        tStr(),
		"promotion_area":          tStr(),
		"rejection_reason":        tStr(),
		"role":                    tStr(),
		"status":                  tStr(),
		"timezone":                tStr(),
		"display_timezone":        tStr(),
		"balance":                 tNum(),
		"brand":                   tStr(),
		"advertiser_account_type": tStr(),
		"create_time":             tTime(),
	})
}

func campaignsSchema() *singer.Schema {
	return objectSchema(map[string]*singer.Schema{
		"advertiser_id":                 tInt(),
		"campaign_id":                   tInt(),
		"campaign_name":                 tStr(),
		"campaign_type":                 tStr(),
		"budget":                        tNum(),
		"budget_mode":                   tStr(),
		"operation_status":              tStr(),
		"secondary_status":              tStr(),
		"objective_type":                tStr(),
		"objective":                     tStr(),
		"is_new_structure":              tBool(),
		"is_smart_performance_campaign": tBool(),
		"split_test_variable":           tStr(),
		"deep_bid_type":                 tStr(),
		"roas_bid":                      tNum(),
		"special_industries":            tStrList(),
		"status":                        tStr(),
		"opt_status":                    tStr(),
		"create_time":                   tTime(),
		"modify_time":                   tTime(),
	})
}

func adGroupsSchema() *singer.Schema {
	return objectSchema(map[string]*singer.Schema{
		"advertiser_id":                   tInt(),
		"campaign_id":                     tInt(),
		"campaign_name":                   tStr(),
		"adgroup_id":                      tInt(),
		"adgroup_name":                    tStr(),
		"placement_type":                  tStr(),
		"placements":                      tStrList(),
		"is_comment_disable":              tBool(),
		"audience_ids":                    tStrList(),
		"excluded_audience_ids":           tStrList(),
		"audience_type":                   tStr(),
		"location_ids":                    tStrList(),
		"gender":                          tStr(),
		"age_groups":                      tStrList(),
		"languages":                       tStrList(),
		"operating_systems":               tStrList(),
		"network_types":                   tStrList(),
		"device_price_ranges":             tIntList(),
		"device_models":                   tStrList(),
		"carriers_v2":                     tStrList(),
		"interest_category_ids":           tStrList(),
		"ios_osv":                         tStr(),
		"android_osv":                     tStr(),
		"ios_target_device":               tStr(),
		"ios_quota_type":                  tStr(),
		"budget_mode":                     tStr(),
		"budget":                          tNum(),
		"schedule_type":                   tStr(),
		"schedule_start_time":             tTime(),
		"schedule_end_time":               tTime(),
		"dayparting":                      tStr(),
		"optimization_goal":               tStr(),
		"optimization_event":              tStr(),
		"billing_event":                   tStr(),
		"bid_type":                        tStr(),
		"bid_price":                       tNum(),
		"conversion_bid_price":            tNum(),
		"deep_bid_type":                   tStr(),
		"roas_bid":                        tNum(),
		"pacing":                          tStr(),
		"frequency":                       tInt(),
		"frequency_schedule":              tInt(),
		"cpv_video_duration":              tStr(),
		"pixel_id":                        tInt(),
		"app_id":                          tInt(),
		"app_download_url":                tStr(),
		"package":                         tStr(),
		"promotion_type":                  tStr(),
		"promotion_website_type":          tStr(),
		"product_set_id":                  tInt(),
		"catalog_id":                      tInt(),
		"catalog_authorized_bc":           tStr(),
		"dpa_retargeting_type":            tStr(),
		"targeting_expansion":             tObj(),
		"pangle_block_app_list_id":        tStrList(),
		"pangle_audience_package_include": tStrList(),
		"pangle_audience_package_exclude": tStrList(),
		"operation_status":                tStr(),
		"secondary_status":                tStr(),
		"status":                          tStr(),
		"opt_status":                      tStr(),
		"create_time":                     tTime(),
		"modify_time":                     tTime(),
	})
}

func adsSchema() *singer.Schema {
	return objectSchema(map[string]*singer.Schema{
		"advertiser_id":              tInt(),
		"campaign_id":                tInt(),
		"campaign_name":              tStr(),
		"adgroup_id":                 tInt(),
		"adgroup_name":               tStr(),
		"ad_id":                      tInt(),
		"ad_name":                    tStr(),
		"ad_text":                    tStr(),
		"ad_format":                  tStr(),
		"call_to_action":             tStr(),
		"call_to_action_id":          tStr(),
		"display_name":               tStr(),
		"identity_id":                tStr(),
		"identity_type":              tStr(),
		"landing_page_url":           tStr(),
		"landing_page_urls":          tStrList(),
		"image_ids":                  tStrList(),
		"image_mode":                 tStr(),
		"video_id":                   tStr(),
		"avatar_icon_web_uri":        tStr(),
		"profile_image_url":          tStr(),
		"app_name":                   tStr(),
		"creative_type":              tStr(),
		"is_aco":                     tBool(),
		"is_new_structure":           tBool(),
		"tracking_pixel_id":          tInt(),
		"impression_tracking_url":    tStr(),
		"click_tracking_url":         tStr(),
		"tiktok_item_id":             tStr(),
		"item_stitch_status":         tStr(),
		"item_duet_status":           tStr(),
		"promotional_music_disabled": tBool(),
		"dpa_fallback_type":          tStr(),
		"dpa_open_url_type":          tStr(),
		"dpa_video_tpl_id":           tStr(),
		"operation_status":           tStr(),
		"secondary_status":           tStr(),
		"status":                     tStr(),
		"opt_status":                 tStr(),
		"create_time":                tTime(),
		"modify_time":                tTime(),
	})
}

// textMetrics are report metrics returned as free text
var textMetrics = map[string]bool{
	"ad_name":                  true,
	"ad_text":                  true,
	"adgroup_name":             true,
	"campaign_name":            true,
	"placement":                true,
	"tt_app_id":                true,
	"tt_app_name":              true,
	"mobile_app_id":            true,
	"promotion_type":           true,
	"dpa_target_audience_type": true,
}

// idMetrics are report metrics holding entity IDs
var idMetrics = map[string]bool{
	"adgroup_id":  true,
	"campaign_id": true,
}

func insightsSchema(s *Stream) *singer.Schema {
	props := map[string]*singer.Schema{
		"advertiser_id":        tInt(),
		"ad_id":                tInt(),
		replicationStatTimeDay: tTime(),
	}
	for _, d := range s.Dimensions {
		if _, ok := props[d]; !ok {
			props[d] = tStr()
		}
	}
	for _, m := range s.Metrics {
		switch {
		case textMetrics[m]:
			props[m] = tStr()
		case idMetrics[m]:
			props[m] = tInt()
		default:
			props[m] = tNumOrStr()
		}
	}
	for _, f := range sentinelFields {
		if _, ok := props[f]; ok {
			props[f] = tNum()
		}
	}
	return objectSchema(props)
}

// SchemaFor returns the JSON Schema of a stream
func SchemaFor(s *Stream) *singer.Schema {
	switch s.ID {
	case StreamAdvertisers:
		return advertisersSchema()
	case StreamCampaigns:
		return campaignsSchema()
	case StreamAdGroups:
		return adGroupsSchema()
	case StreamAds:
		return adsSchema()
	}
	return insightsSchema(s)
}
