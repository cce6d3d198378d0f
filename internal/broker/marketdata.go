package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"krx-scalp-lab/internal/domain"
)

// Index codes for the index quote and daily chart APIs.
const (
	IndexKOSPI  = "0001"
	IndexKOSDAQ = "1001"
)

const multiQuoteChunk = 30

// GetQuote fetches one instrument's current quote.
func (c *Client) GetQuote(ctx context.Context, code string) (*domain.MarketSnapshot, error) {
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", "J")
	params.Set("FID_INPUT_ISCD", code)

	resp, err := c.get(ctx, "/uapi/domestic-stock/v1/quotations/inquire-price", "FHKST01010100", params)
	if err != nil {
		return nil, err
	}
	if !resp.success() {
		return nil, resp.err("quote " + code)
	}

	var o struct {
		Name       string `json:"hts_kor_isnm"`
		Last       string `json:"stck_prpr"`
		ChangeRate string `json:"prdy_ctrt"`
		Open       string `json:"stck_oprc"`
		High       string `json:"stck_hgpr"`
		Low        string `json:"stck_lwpr"`
		Volume     string `json:"acml_vol"`
	}
	if err := json.Unmarshal(resp.Output, &o); err != nil {
		return nil, fmt.Errorf("failed to decode quote for %s: %w", code, err)
	}

	return &domain.MarketSnapshot{
		Code:        code,
		Name:        o.Name,
		Open:        parseF(o.Open),
		Last:        parseF(o.Last),
		High:        parseF(o.High),
		Low:         parseF(o.Low),
		Volume:      parseI(o.Volume),
		ChangeRate:  parseF(o.ChangeRate),
		TimestampMs: time.Now().UnixMilli(),
	}, nil
}

// GetQuotes fetches quotes for up to 30 instruments per API call, chunking
// longer lists. Instruments the API omits are skipped.
func (c *Client) GetQuotes(ctx context.Context, codes []string) ([]*domain.MarketSnapshot, error) {
	var out []*domain.MarketSnapshot
	for start := 0; start < len(codes); start += multiQuoteChunk {
		end := start + multiQuoteChunk
		if end > len(codes) {
			end = len(codes)
		}
		chunk, err := c.multiQuote(ctx, codes[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (c *Client) multiQuote(ctx context.Context, codes []string) ([]*domain.MarketSnapshot, error) {
	params := url.Values{}
	for i, code := range codes {
		n := strconv.Itoa(i + 1)
		params.Set("FID_COND_MRKT_DIV_CODE_"+n, "J")
		params.Set("FID_INPUT_ISCD_"+n, code)
	}

	resp, err := c.get(ctx, "/uapi/domestic-stock/v1/quotations/intstock-multprice", "FHKST11300006", params)
	if err != nil {
		return nil, err
	}
	if !resp.success() {
		return nil, resp.err("multi quote")
	}

	var rows []struct {
		Code       string `json:"inter_shrn_iscd"`
		Name       string `json:"inter_kor_isnm"`
		Last       string `json:"inter2_prpr"`
		ChangeRate string `json:"prdy_ctrt"`
		Open       string `json:"inter2_oprc"`
		High       string `json:"inter2_hgpr"`
		Low        string `json:"inter2_lwpr"`
		Volume     string `json:"acml_vol"`
	}
	if err := json.Unmarshal(resp.Output, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode multi quote: %w", err)
	}

	now := time.Now().UnixMilli()
	out := make([]*domain.MarketSnapshot, 0, len(rows))
	for _, r := range rows {
		if r.Code == "" {
			continue
		}
		out = append(out, &domain.MarketSnapshot{
			Code:        r.Code,
			Name:        r.Name,
			Open:        parseF(r.Open),
			Last:        parseF(r.Last),
			High:        parseF(r.High),
			Low:         parseF(r.Low),
			Volume:      parseI(r.Volume),
			ChangeRate:  parseF(r.ChangeRate),
			TimestampMs: now,
		})
	}
	return out, nil
}

// GetDailyBars fetches an instrument's daily bars in [from, to], ascending,
// with PrevClose filled from the preceding session where known.
func (c *Client) GetDailyBars(ctx context.Context, code, from, to string) ([]*domain.DailyBar, error) {
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", "J")
	params.Set("FID_INPUT_ISCD", code)
	params.Set("FID_INPUT_DATE_1", from)
	params.Set("FID_INPUT_DATE_2", to)
	params.Set("FID_PERIOD_DIV_CODE", "D")
	params.Set("FID_ORG_ADJ_PRC", "0")

	resp, err := c.get(ctx, "/uapi/domestic-stock/v1/quotations/inquire-daily-itemchartprice", "FHKST03010100", params)
	if err != nil {
		return nil, err
	}
	if !resp.success() {
		return nil, resp.err("daily bars " + code)
	}

	var rows []struct {
		Date   string `json:"stck_bsop_date"`
		Open   string `json:"stck_oprc"`
		High   string `json:"stck_hgpr"`
		Low    string `json:"stck_lwpr"`
		Close  string `json:"stck_clpr"`
		Volume string `json:"acml_vol"`
	}
	if err := json.Unmarshal(resp.Output2, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode daily bars for %s: %w", code, err)
	}

	bars := make([]*domain.DailyBar, 0, len(rows))
	for _, r := range rows {
		if r.Date == "" {
			continue
		}
		bars = append(bars, &domain.DailyBar{
			Code:      code,
			TradeDate: r.Date,
			Open:      parseF(r.Open),
			High:      parseF(r.High),
			Low:       parseF(r.Low),
			Close:     parseF(r.Close),
			Volume:    parseI(r.Volume),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].TradeDate < bars[j].TradeDate })
	for i := 1; i < len(bars); i++ {
		bars[i].PrevClose = bars[i-1].Close
	}
	return bars, nil
}

// GetIndexBars fetches the index daily OHLC in [from, to], ascending, as
// bars coded with the index record code so bar storage can hold them next
// to instrument bars.
func (c *Client) GetIndexBars(ctx context.Context, indexCode, from, to string) ([]*domain.DailyBar, error) {
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", "U")
	params.Set("FID_INPUT_ISCD", indexCode)
	params.Set("FID_INPUT_DATE_1", from)
	params.Set("FID_INPUT_DATE_2", to)
	params.Set("FID_PERIOD_DIV_CODE", "D")

	resp, err := c.get(ctx, "/uapi/domestic-stock/v1/quotations/inquire-daily-indexchartprice", "FHKUP03500100", params)
	if err != nil {
		return nil, err
	}
	if !resp.success() {
		return nil, resp.err("index daily " + indexCode)
	}

	var rows []struct {
		Date  string `json:"stck_bsop_date"`
		Open  string `json:"bstp_nmix_oprc"`
		High  string `json:"bstp_nmix_hgpr"`
		Low   string `json:"bstp_nmix_lwpr"`
		Close string `json:"bstp_nmix_prpr"`
	}
	if err := json.Unmarshal(resp.Output2, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode index daily chart: %w", err)
	}

	bars := make([]*domain.DailyBar, 0, len(rows))
	for _, r := range rows {
		if r.Date == "" {
			continue
		}
		bars = append(bars, &domain.DailyBar{
			Code:      domain.IndexRecordCode,
			TradeDate: r.Date,
			Open:      parseF(r.Open),
			High:      parseF(r.High),
			Low:       parseF(r.Low),
			Close:     parseF(r.Close),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].TradeDate < bars[j].TradeDate })
	for i := 1; i < len(bars); i++ {
		bars[i].PrevClose = bars[i-1].Close
	}
	return bars, nil
}

// GetIndexCloses fetches the index daily closes in [from, to], ascending.
func (c *Client) GetIndexCloses(ctx context.Context, indexCode, from, to string) ([]float64, error) {
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", "U")
	params.Set("FID_INPUT_ISCD", indexCode)
	params.Set("FID_INPUT_DATE_1", from)
	params.Set("FID_INPUT_DATE_2", to)
	params.Set("FID_PERIOD_DIV_CODE", "D")

	resp, err := c.get(ctx, "/uapi/domestic-stock/v1/quotations/inquire-daily-indexchartprice", "FHKUP03500100", params)
	if err != nil {
		return nil, err
	}
	if !resp.success() {
		return nil, resp.err("index daily " + indexCode)
	}

	var rows []struct {
		Date  string `json:"stck_bsop_date"`
		Close string `json:"bstp_nmix_prpr"`
	}
	if err := json.Unmarshal(resp.Output2, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode index daily chart: %w", err)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	closes := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v := parseF(r.Close); v > 0 {
			closes = append(closes, v)
		}
	}
	return closes, nil
}

// GetIndexLevel fetches the current index level.
func (c *Client) GetIndexLevel(ctx context.Context, indexCode string) (float64, error) {
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", "U")
	params.Set("FID_INPUT_ISCD", indexCode)

	resp, err := c.get(ctx, "/uapi/domestic-stock/v1/quotations/inquire-index-price", "FHPUP02100000", params)
	if err != nil {
		return 0, err
	}
	if !resp.success() {
		return 0, resp.err("index level " + indexCode)
	}

	var o struct {
		Level string `json:"bstp_nmix_prpr"`
	}
	if err := json.Unmarshal(resp.Output, &o); err != nil {
		return 0, fmt.Errorf("failed to decode index level: %w", err)
	}
	return parseF(o.Level), nil
}

// VolumeLeaders fetches the top instruments by traded volume for the
// dynamic universe pool.
func (c *Client) VolumeLeaders(ctx context.Context, topN int) ([]*domain.Instrument, error) {
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", "J")
	params.Set("FID_COND_SCR_DIV_CODE", "20171")
	params.Set("FID_INPUT_ISCD", "0000")
	params.Set("FID_DIV_CLS_CODE", "0")
	params.Set("FID_BLNG_CLS_CODE", "0")
	params.Set("FID_TRGT_CLS_CODE", "111111111")
	params.Set("FID_TRGT_EXLS_CLS_CODE", "000000")
	params.Set("FID_INPUT_PRICE_1", "")
	params.Set("FID_INPUT_PRICE_2", "")
	params.Set("FID_VOL_CNT", "")
	params.Set("FID_INPUT_DATE_1", "")

	resp, err := c.get(ctx, "/uapi/domestic-stock/v1/quotations/volume-rank", "FHPST01710000", params)
	if err != nil {
		return nil, err
	}
	if !resp.success() {
		return nil, resp.err("volume ranking")
	}

	var rows []struct {
		Code string `json:"mksc_shrn_iscd"`
		Name string `json:"hts_kor_isnm"`
	}
	if err := json.Unmarshal(resp.Output, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode volume ranking: %w", err)
	}

	out := make([]*domain.Instrument, 0, topN)
	for _, r := range rows {
		if r.Code == "" {
			continue
		}
		out = append(out, &domain.Instrument{Code: r.Code, Name: r.Name, Tradable: true})
		if len(out) == topN {
			break
		}
	}
	return out, nil
}

func parseF(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseI(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
