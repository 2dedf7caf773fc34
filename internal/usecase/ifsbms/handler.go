package ifsbms

import (
	"go.uber.org/zap"

	protocol "bms-gateway/internal/protocol/ifsbms"
	"bms-gateway/internal/store"
	"bms-gateway/internal/usecase"
)

// Handler is the ingest actor's pipeline: classify, parse, validate,
// commit, count, fan out. It is strictly single-threaded; one frame is
// processed to completion before the next is dequeued.
type Handler struct {
	store      *store.Store
	dispatcher *usecase.DataDispatcher // nil when MQ is disabled
	logger     *zap.Logger
}

func NewHandler(st *store.Store, dispatcher *usecase.DataDispatcher, logger *zap.Logger) *Handler {
	return &Handler{
		store:      st,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleFrame runs one raw CAN frame through the pipeline. The returned
// error reports rejection to the caller (and tests); it never unwinds
// past a single frame.
func (h *Handler) HandleFrame(canID uint32, data []byte, nowMs int64) error {
	stats := h.store.Stats()
	stats.OnFrame()

	ft, node, err := protocol.Classify(canID, len(data))
	if err != nil {
		perr := err.(*protocol.ParseError)
		stats.OnInvalidFrame(perr, nowMs)
		h.logger.Debug("Frame rejected by classifier",
			zap.Uint32("can_id", canID), zap.Error(err))
		return err
	}
	stats.OnAccepted(ft)

	if err := h.parseAndCommit(ft, node, data, nowMs); err != nil {
		perr, ok := err.(*protocol.ParseError)
		if !ok {
			perr = &protocol.ParseError{Kind: protocol.ErrInternal, NodeID: node, Frame: ft}
		}
		stats.OnParseError(perr, nowMs)
		h.store.RecordParseError(node)
		h.logger.Warn("Frame rejected by parser",
			zap.Uint8("node", node),
			zap.String("frame", ft.String()),
			zap.Error(err))
		return err
	}

	stats.OnSuccess()
	return nil
}

func (h *Handler) parseAndCommit(ft protocol.FrameType, node uint8, data []byte, nowMs int64) error {
	switch ft {
	case protocol.Frame190:
		return h.handleBasic(node, data, nowMs)
	case protocol.Frame290:
		d, err := protocol.ParseMinCellData(node, data)
		if err != nil {
			return err
		}
		h.store.Commit(node, ft, nowMs, func(st *store.NodeState) { st.MinCells = *d })
		return nil
	case protocol.Frame310:
		d, err := protocol.ParseSOHData(node, data)
		if err != nil {
			return err
		}
		h.store.Commit(node, ft, nowMs, func(st *store.NodeState) { st.SOH = *d })
		return nil
	case protocol.Frame390:
		d, err := protocol.ParseMaxCellData(node, data)
		if err != nil {
			return err
		}
		h.store.Commit(node, ft, nowMs, func(st *store.NodeState) { st.MaxCells = *d })
		return nil
	case protocol.Frame410:
		d, err := protocol.ParseTemperatureData(node, data)
		if err != nil {
			return err
		}
		h.store.Commit(node, ft, nowMs, func(st *store.NodeState) { st.Temps = *d })
		return nil
	case protocol.Frame510:
		d, err := protocol.ParseLimitsData(node, data)
		if err != nil {
			return err
		}
		h.store.Commit(node, ft, nowMs, func(st *store.NodeState) { st.Limits = *d })
		return nil
	case protocol.Frame490:
		return h.handleMux(node, data, nowMs)
	case protocol.Frame1B0:
		d, err := protocol.ParseRawData(node, data)
		if err != nil {
			return err
		}
		h.store.Commit(node, ft, nowMs, func(st *store.NodeState) { st.Raw1B0 = d.Bytes })
		return nil
	case protocol.Frame710:
		d, err := protocol.ParseNMTData(node, data)
		if err != nil {
			return err
		}
		h.store.Commit(node, ft, nowMs, func(st *store.NodeState) { st.NMTState = d.State })
		return nil
	default:
		return &protocol.ParseError{Kind: protocol.ErrInternal, NodeID: node, Frame: ft}
	}
}

func (h *Handler) handleBasic(node uint8, data []byte, nowMs int64) error {
	d, err := protocol.ParseBasicData(node, data)
	if err != nil {
		return err
	}
	if !d.InNominalBand() {
		h.logger.Warn("Pack voltage outside nominal band",
			zap.Uint8("node", node),
			zap.Float64("voltage_v", d.PackVoltage))
	}
	var snap store.NodeState
	h.store.Commit(node, protocol.Frame190, nowMs, func(st *store.NodeState) {
		st.Basic = *d
		snap = *st
	})
	if h.dispatcher != nil {
		h.dispatcher.Dispatch(usecase.MQPayload{
			Type: "node_snapshot",
			Node: node,
			Data: usecase.NodeSnapshot{
				NodeID:            node,
				PackVoltage:       snap.Basic.PackVoltage,
				PackCurrent:       snap.Basic.PackCurrent,
				RemainingEnergyWh: snap.Basic.RemainingEnergyWh,
				SOC:               snap.Basic.SOC,
				SOH:               snap.SOH.SOH,
				CellMinVoltage:    snap.MinCells.CellMinVoltage,
				CellMaxVoltage:    snap.MaxCells.CellMaxVoltage,
				TempMax:           snap.Temps.TempMax,
				ErrorByte:         snap.Basic.Errors.ToByte(),
				TimestampMs:       nowMs,
			},
		})
	}
	return nil
}

func (h *Handler) handleMux(node uint8, data []byte, nowMs int64) error {
	d, err := protocol.ParseMuxFrame(node, data)
	if err != nil {
		return err
	}
	known := false
	h.store.Commit(node, protocol.Frame490, nowMs, func(st *store.NodeState) {
		known = st.Mux.Apply(d.Selector, d.Value)
	})
	if !known {
		// Legal but outside the table; informational only.
		h.store.Stats().OnUnknownMux()
		h.logger.Info("Unknown mux selector",
			zap.Uint8("node", node),
			zap.Uint8("selector", d.Selector),
			zap.Uint16("value", d.Value))
	}
	return nil
}
